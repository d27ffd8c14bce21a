package pkgcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveAndCommitArchive(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, nil, 0)

	slot, err := c.Reserve(context.Background(), "pkg-1.0-h0.tar.bz2")
	require.NoError(t, err)
	defer slot.Release()

	body := strings.NewReader("archive-bytes")
	sum := sha256Hex(t, "archive-bytes")
	require.NoError(t, c.CommitArchive(slot, body, sum, ""))

	assert.FileExists(t, slot.ArchivePath())

	e, found := c.Lookup("pkg-1.0-h0.tar.bz2")
	require.True(t, found)
	status, err := c.Verify(Entry{ArchivePath: e.ArchivePath, SHA256: sum})
	require.NoError(t, err)
	assert.Equal(t, Ok, status)
}

func TestCommitArchiveRejectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, nil, 0)

	slot, err := c.Reserve(context.Background(), "pkg-1.0-h0.tar.bz2")
	require.NoError(t, err)
	defer slot.Release()

	err = c.CommitArchive(slot, strings.NewReader("bytes"), "deadbeef", "")
	require.Error(t, err)
	_, statErr := os.Stat(slot.ArchivePath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestReserveIsExclusiveAcrossSlots(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, nil, 0)

	slot, err := c.Reserve(context.Background(), "pkg-1.0-h0.tar.bz2")
	require.NoError(t, err)
	defer slot.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, err = c.Reserve(ctx, "pkg-1.0-h0.tar.bz2")
	assert.Error(t, err)
}

func TestExtractWritesCompletionMarker(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, nil, 0)

	slot, err := c.Reserve(context.Background(), "pkg-1.0-h0.tar.bz2")
	require.NoError(t, err)
	defer slot.Release()

	require.NoError(t, c.Extract(slot, func(archivePath, destDir string) error {
		return os.WriteFile(filepath.Join(destDir, "a.txt"), []byte("hi"), 0o644)
	}))
	assert.DirExists(t, filepath.Join(slot.ExtractedPath(), "info"))
}

func sha256Hex(t *testing.T, s string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

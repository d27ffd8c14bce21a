package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256Hex(t *testing.T, s string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

type memDest struct {
	key string
	mu  sync.Mutex
	buf bytes.Buffer
}

func (d *memDest) Key() string { return d.key }
func (d *memDest) Write(body io.Reader) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := io.Copy(&d.buf, body)
	return err
}

// fakeTransport serves canned bodies or errors keyed by path, and counts
// how many times each path was requested so tests can assert retry and
// dedup behavior precisely.
type fakeTransport struct {
	mu       sync.Mutex
	bodies   map[string]string
	errs     map[string]error
	calls    map[string]int
	failOnce map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		bodies:   map[string]string{},
		errs:     map[string]error{},
		calls:    map[string]int{},
		failOnce: map[string]bool{},
	}
}

func (t *fakeTransport) Fetch(ctx context.Context, mirror *Mirror, path string) (io.ReadCloser, error) {
	t.mu.Lock()
	t.calls[path]++
	n := t.calls[path]
	t.mu.Unlock()

	if t.failOnce[path] && n == 1 {
		return nil, &retriableError{errTransient}
	}
	if err, ok := t.errs[path]; ok {
		return nil, err
	}
	return io.NopCloser(bytes.NewBufferString(t.bodies[path])), nil
}

var errTransient = &httpStatusError{StatusCode: 503, URL: "transient"}

func TestRunFetchesAndVerifiesChecksum(t *testing.T) {
	tr := newFakeTransport()
	tr.bodies["pkg-1.0.tar.bz2"] = "hello"

	f := New(Options{Transport: tr})
	dest := &memDest{key: "cache/pkg-1.0.tar.bz2"}

	results, err := f.Run(context.Background(), []Request{{
		Mirrors:        []*Mirror{NewMirror("m1", "https://example.test", 0)},
		Path:           "pkg-1.0.tar.bz2",
		ExpectedSHA256: sha256Hex(t, "hello"),
		Dest:           dest,
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "hello", dest.buf.String())
}

func TestRunRetriesTransientFailureOnSameMirror(t *testing.T) {
	tr := newFakeTransport()
	tr.bodies["pkg-1.0.tar.bz2"] = "hello"
	tr.failOnce["pkg-1.0.tar.bz2"] = true

	f := New(Options{Transport: tr, MaxRetries: 2, BackoffBase: 0})
	dest := &memDest{key: "cache/pkg-1.0.tar.bz2"}

	results, err := f.Run(context.Background(), []Request{{
		Mirrors:        []*Mirror{NewMirror("m1", "https://example.test", 0)},
		Path:           "pkg-1.0.tar.bz2",
		ExpectedSHA256: sha256Hex(t, "hello"),
		Dest:           dest,
	}})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].Attempts)
}

func TestRunFailsFastOnFatalHTTPStatus(t *testing.T) {
	tr := newFakeTransport()
	tr.errs["missing.tar.bz2"] = &httpStatusError{StatusCode: 404, URL: "x"}

	f := New(Options{Transport: tr, MaxRetries: 3, BackoffBase: 0})
	dest := &memDest{key: "cache/missing.tar.bz2"}

	results, err := f.Run(context.Background(), []Request{{
		Mirrors: []*Mirror{NewMirror("m1", "https://example.test", 0)},
		Path:    "missing.tar.bz2",
		Dest:    dest,
	}})
	require.NoError(t, err)
	require.Error(t, results[0].Err)
	assert.Equal(t, 1, results[0].Attempts)
}

func TestMirrorAdmissionRespectsParallelCap(t *testing.T) {
	m := NewMirror("m1", "https://example.test", 1)
	assert.True(t, m.admit(timeNow()))
	assert.False(t, m.admit(timeNow()))
	m.recordOutcome(true, 0, 0)
	assert.True(t, m.admit(timeNow()))
}

func TestMirrorBackoffCapsAllowedConnections(t *testing.T) {
	m := NewMirror("m1", "https://example.test", 0)
	m.admit(timeNow())
	m.admit(timeNow())
	m.recordOutcome(false, 0, 2)
	assert.Equal(t, 1, m.RunningTransfers)
	assert.Equal(t, 1, m.AllowedParallelConnections)
	assert.Equal(t, 1, m.FailedTransfers)
}

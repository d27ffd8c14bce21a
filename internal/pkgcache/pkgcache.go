// Package pkgcache implements the Package Cache from spec.md §4.D: a
// content-addressed store of downloaded archives and their extracted
// directories, guarded by cross-process advisory locks so concurrent
// processes never race on the same archive.
//
// Grounded on the teacher's fs.go (CopyDir/CopyFile/renameWithFallback —
// atomic-move-with-copy-fallback is exactly commit_archive's contract) and
// on theckman/go-flock for the cross-process lock spec.md §4.D requires.
package pkgcache

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/theckman/go-flock"

	shutil "github.com/termie/go-shutil"
)

// VerifyStatus is the result of re-checking an entry's archive/extracted
// files against its recorded checksums and sizes.
type VerifyStatus int

const (
	Ok VerifyStatus = iota
	Corrupt
)

// Entry is what lookup() returns: an archive, its extracted directory, or
// both, plus the metadata needed to re-verify either.
type Entry struct {
	ArchivePath   string
	ExtractedPath string
	SHA256        string
	MD5           string
	Size          int64
}

func (e Entry) hasArchive() bool   { return e.ArchivePath != "" }
func (e Entry) hasExtracted() bool { return e.ExtractedPath != "" }

// Cache is the package cache rooted at Root, per spec.md §4.D.
type Cache struct {
	Root string
	log  logrus.FieldLogger

	// lockTimeout bounds how long reserve() blocks on an already-held slot.
	lockTimeout time.Duration
}

// New constructs a Cache rooted at root. lockTimeout of zero means Reserve
// sets no deadline of its own and waits until its ctx is done — see Reserve.
func New(root string, log logrus.FieldLogger, lockTimeout time.Duration) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{Root: root, log: log, lockTimeout: lockTimeout}
}

func (c *Cache) archivePath(filename string) string { return filepath.Join(c.Root, filename) }
func (c *Cache) extractedPath(filename string) string {
	return filepath.Join(c.Root, stripArchiveExt(filename))
}
func (c *Cache) lockPath(filename string) string { return c.archivePath(filename) + ".lock" }

func stripArchiveExt(filename string) string {
	for _, ext := range []string{".conda", ".tar.bz2"} {
		if len(filename) > len(ext) && filename[len(filename)-len(ext):] == ext {
			return filename[:len(filename)-len(ext)]
		}
	}
	return filename
}

// Lookup returns the cache entry for filename if either its archive or its
// extracted directory (marked complete by an info/ subdirectory) already
// exists, per spec.md §4.D.
func (c *Cache) Lookup(filename string) (Entry, bool) {
	var e Entry
	found := false

	ap := c.archivePath(filename)
	if fi, err := os.Stat(ap); err == nil && !fi.IsDir() {
		e.ArchivePath = ap
		e.Size = fi.Size()
		found = true
	}

	ep := c.extractedPath(filename)
	if fi, err := os.Stat(filepath.Join(ep, "info")); err == nil && fi.IsDir() {
		e.ExtractedPath = ep
		found = true
	}

	return e, found
}

// Slot is an exclusive reservation on one (cache_root, filename) pair,
// released by Release. It owns the cross-process file lock for the
// archive's lifetime, mirroring the source's RAII lock-guard idiom (see
// spec.md §9's note on scoped cleanup tied to object lifetimes).
type Slot struct {
	cache    *Cache
	filename string
	fl       *flock.Flock
}

// Filename is the archive name this slot was reserved for.
func (s *Slot) Filename() string { return s.filename }

// ArchivePath is where commit_archive should place the verified bytes.
func (s *Slot) ArchivePath() string { return s.cache.archivePath(s.filename) }

// ExtractedPath is where extract should unpack the archive.
func (s *Slot) ExtractedPath() string { return s.cache.extractedPath(s.filename) }

// Release drops the slot's file lock (the lock sidecar file itself is left
// in place). It is safe to call more than once; a failure to release the
// lock is logged, not surfaced, per
// spec.md §9 ("failure to release a lock is a bug, must log and continue,
// not panic").
func (s *Slot) Release() {
	if s.fl == nil {
		return
	}
	if err := s.fl.Unlock(); err != nil {
		s.cache.log.WithError(err).WithField("filename", s.filename).Warn("pkgcache: failed to release lock")
	}
}

// Reserve obtains the exclusive slot for filename, blocking up to the
// configured lock timeout if another process (or goroutine) holds it.
// Per the Module D notes in SPEC_FULL.md, the lock sidecar uses go-flock's own naming (<filename>.lock) rather than the
// source's <target>.<pid>.lock scheme — go-flock's flock(2)-backed lock
// already makes stale-holder detection a kernel guarantee, so a
// hand-rolled pid-liveness check would only duplicate it.
func (c *Cache) Reserve(ctx context.Context, filename string) (*Slot, error) {
	fl := flock.New(c.lockPath(filename))

	if c.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.lockTimeout)
		defer cancel()
	}
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, errors.Wrapf(err, "pkgcache: reserve %q", filename)
	}
	if !locked {
		return nil, errors.Errorf("pkgcache: reserve %q: lock not acquired", filename)
	}
	return &Slot{cache: c, filename: filename, fl: fl}, nil
}

// CommitArchive verifies body against expectedSHA256 (falling back to
// expectedMD5 if expectedSHA256 is empty) and atomically moves it into
// place, per spec.md §4.D.
func (c *Cache) CommitArchive(slot *Slot, body io.Reader, expectedSHA256, expectedMD5 string) error {
	tmp := slot.ArchivePath() + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "pkgcache: commit_archive")
	}

	sha := sha256.New()
	md := md5.New()
	if _, err := io.Copy(f, io.TeeReader(body, io.MultiWriter(sha, md))); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "pkgcache: commit_archive: write")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "pkgcache: commit_archive: close")
	}

	gotSHA := hex.EncodeToString(sha.Sum(nil))
	gotMD5 := hex.EncodeToString(md.Sum(nil))
	if expectedSHA256 != "" {
		if gotSHA != expectedSHA256 {
			os.Remove(tmp)
			return errors.Errorf("pkgcache: commit_archive: sha256 mismatch for %q: got %s want %s", slot.filename, gotSHA, expectedSHA256)
		}
	} else if expectedMD5 != "" && gotMD5 != expectedMD5 {
		os.Remove(tmp)
		return errors.Errorf("pkgcache: commit_archive: md5 mismatch for %q: got %s want %s", slot.filename, gotMD5, expectedMD5)
	}

	if err := renameWithFallback(tmp, slot.ArchivePath()); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "pkgcache: commit_archive: move into place")
	}
	return nil
}

// Extract unpacks slot's archive into a sibling directory and writes an
// info/ completion marker, per spec.md §4.D. On failure the partial
// directory is removed.
func (c *Cache) Extract(slot *Slot, extractFn func(archivePath, destDir string) error) error {
	dest := slot.ExtractedPath()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrap(err, "pkgcache: extract")
	}
	if err := extractFn(slot.ArchivePath(), dest); err != nil {
		os.RemoveAll(dest)
		return errors.Wrap(err, "pkgcache: extract")
	}
	if err := os.MkdirAll(filepath.Join(dest, "info"), 0o755); err != nil {
		os.RemoveAll(dest)
		return errors.Wrap(err, "pkgcache: extract: write completion marker")
	}
	return nil
}

// Verify re-checks an entry's archive against its recorded sha256/md5 and
// size, per spec.md §4.D. When only an extracted directory is present, it
// falls back to comparing the directory's total file size (a paths.json
// stand-in: the full per-file manifest belongs to the transaction engine's
// PrefixRecord, not the cache).
func (c *Cache) Verify(e Entry) (VerifyStatus, error) {
	if !e.hasArchive() {
		if !e.hasExtracted() {
			return Ok, nil
		}
		total, err := walkSize(e.ExtractedPath)
		if err != nil {
			return Corrupt, errors.Wrap(err, "pkgcache: verify")
		}
		if e.Size != 0 && total != e.Size {
			return Corrupt, nil
		}
		return Ok, nil
	}
	fi, err := os.Stat(e.ArchivePath)
	if err != nil {
		return Corrupt, errors.Wrap(err, "pkgcache: verify")
	}
	if e.Size != 0 && fi.Size() != e.Size {
		return Corrupt, nil
	}

	f, err := os.Open(e.ArchivePath)
	if err != nil {
		return Corrupt, errors.Wrap(err, "pkgcache: verify")
	}
	defer f.Close()

	sha := sha256.New()
	md := md5.New()
	if _, err := io.Copy(io.MultiWriter(sha, md), f); err != nil {
		return Corrupt, errors.Wrap(err, "pkgcache: verify: read")
	}

	if e.SHA256 != "" && hex.EncodeToString(sha.Sum(nil)) != e.SHA256 {
		return Corrupt, nil
	}
	if e.SHA256 == "" && e.MD5 != "" && hex.EncodeToString(md.Sum(nil)) != e.MD5 {
		return Corrupt, nil
	}
	return Ok, nil
}

// walkSize sums file sizes under dir using godirwalk's faster readdir
// path, used by Verify when comparing an extracted directory's total size
// against the entry's recorded size.
func walkSize(dir string) (int64, error) {
	var total int64
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			fi, err := os.Lstat(path)
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		},
	})
	return total, err
}

// renameWithFallback mirrors the teacher's fs.go helper: attempt an atomic
// rename first, fall back to a copy-then-remove when src and dest are on
// different devices.
func renameWithFallback(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := shutil.CopyFile(src, dest, true); err != nil {
		return err
	}
	return os.Remove(src)
}

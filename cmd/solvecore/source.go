package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/fetch"
	"github.com/mamba-org/solvecore/internal/pkgcache"
	"github.com/mamba-org/solvecore/internal/pool"
	"github.com/mamba-org/solvecore/internal/transaction"
)

// cacheSource implements transaction.PackageSource by composing the
// package cache and the fetcher: a cache hit serves the already-extracted
// tree directly; a miss reserves a slot, downloads through the fetcher,
// extracts, and serves the freshly-extracted tree. Kept in cmd/solvecore
// rather than internal/transaction per that package's PackageSource
// doc comment, which deliberately keeps pkgcache/fetch out of its import
// graph.
type cacheSource struct {
	cache *pkgcache.Cache
	f     *fetch.Fetcher
	p     *pool.Pool
	log   logrus.FieldLogger
}

func newCacheSource(cache *pkgcache.Cache, f *fetch.Fetcher, p *pool.Pool, log logrus.FieldLogger) *cacheSource {
	return &cacheSource{cache: cache, f: f, p: p, log: log}
}

func (s *cacheSource) Ensure(ctx context.Context, sv *pool.Solvable) (string, []transaction.PathSpec, error) {
	if entry, ok := s.cache.Lookup(sv.Filename); ok && entry.ExtractedPath != "" {
		if status, err := s.cache.Verify(entry); err == nil && status == pkgcache.Ok {
			paths, err := readPathsJSON(entry.ExtractedPath)
			if err == nil {
				return entry.ExtractedPath, paths, nil
			}
		}
	}

	slot, err := s.cache.Reserve(ctx, sv.Filename)
	if err != nil {
		return "", nil, errors.Wrapf(err, "source: reserving slot for %s", sv.Filename)
	}
	defer slot.Release()

	if entry, ok := s.cache.Lookup(sv.Filename); !ok || entry.ArchivePath == "" {
		if err := s.downloadArchive(ctx, slot, sv); err != nil {
			return "", nil, err
		}
	}

	extractFn := extractTarBz2
	if strings.HasSuffix(sv.Filename, ".conda") {
		return "", nil, errors.Errorf("source: %s: .conda archives require a zstd decoder not present in this build", sv.Filename)
	}

	if err := s.cache.Extract(slot, extractFn); err != nil {
		return "", nil, errors.Wrapf(err, "source: extracting %s", sv.Filename)
	}

	paths, err := readPathsJSON(slot.ExtractedPath())
	if err != nil {
		return "", nil, err
	}
	return slot.ExtractedPath(), paths, nil
}

// slotDestination adapts a reserved pkgcache.Slot to fetch.Destination.
// CommitArchive is invoked with empty expected sums and performs only the
// atomic temp-then-rename move into place; fetch's verifyingReader compares
// the checksum after Write returns, and downloadArchive deletes the
// committed archive when the fetch fails.
type slotDestination struct {
	cache *pkgcache.Cache
	slot  *pkgcache.Slot
}

func (d *slotDestination) Key() string { return d.slot.ArchivePath() }
func (d *slotDestination) Write(body io.Reader) error {
	return d.cache.CommitArchive(d.slot, body, "", "")
}

func (s *cacheSource) downloadArchive(ctx context.Context, slot *pkgcache.Slot, sv *pool.Solvable) error {
	req := fetch.Request{
		Mirrors:        []*fetch.Mirror{fetch.NewMirror(sv.Channel, sv.Channel, 4)},
		Path:           sv.Filename,
		ExpectedSHA256: sv.SHA256,
		ExpectedMD5:    sv.MD5,
		ContentLength:  sv.Size,
		Dest:           &slotDestination{cache: s.cache, slot: slot},
	}
	results, err := s.f.Run(ctx, []fetch.Request{req})
	if err != nil {
		return errors.Wrapf(err, "source: fetching %s", sv.Filename)
	}
	if res := results[0]; res.Err != nil {
		_ = os.Remove(slot.ArchivePath())
		return errors.Wrapf(res.Err, "source: fetching %s", sv.Filename)
	}
	return nil
}

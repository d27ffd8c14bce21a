package repodata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamba-org/solvecore/internal/pool"
)

func TestBoltCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenBoltCache(dir, nil)
	require.NoError(t, err)
	defer cache.Close()

	p := pool.New(pool.Options{})
	repo := p.AddRepo("conda-forge/linux-64")
	require.NoError(t, LoadFromJSON(p, repo, []byte(sampleRepodata), "https://conda.anaconda.org/conda-forge", HTTPMetadata{}, Options{}))

	meta := HTTPMetadata{ToolVersion: "1.0.0", URL: "https://conda.anaconda.org/conda-forge/linux-64", ETag: `"abc"`}
	require.NoError(t, cache.WriteCache(p, repo, "conda-forge/linux-64", meta))

	p2 := pool.New(pool.Options{})
	repo2 := p2.AddRepo("conda-forge/linux-64")
	err = cache.LoadFromCache(p2, repo2, "conda-forge/linux-64", meta)
	require.NoError(t, err)
	assert.Len(t, p2.Repo(repo2).Solvables(), 2)
}

func TestBoltCacheMissOnHeaderMismatch(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenBoltCache(dir, nil)
	require.NoError(t, err)
	defer cache.Close()

	p := pool.New(pool.Options{})
	repo := p.AddRepo("r")
	require.NoError(t, LoadFromJSON(p, repo, []byte(sampleRepodata), "https://x", HTTPMetadata{}, Options{}))
	require.NoError(t, cache.WriteCache(p, repo, "r", HTTPMetadata{ETag: "v1"}))

	p2 := pool.New(pool.Options{})
	repo2 := p2.AddRepo("r")
	err = cache.LoadFromCache(p2, repo2, "r", HTTPMetadata{ETag: "v2"})
	assert.True(t, IsCacheMiss(err))
}

func TestBoltCachePath(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenBoltCache(dir, nil)
	require.NoError(t, err)
	defer cache.Close()
	assert.FileExists(t, filepath.Join(dir, "repodata.solv.db"))
}

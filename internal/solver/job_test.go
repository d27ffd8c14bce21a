package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamba-org/solvecore/internal/pool"
)

func TestTranslateUpdateAllSetsDistupgrade(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	p.Internalize(repo)
	p.CreateWhatprovides()

	jobs, err := translateRequest(p, *(&Request{}).UpdateAll(true), BestObeyPolicy, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, JobUpdateAll, jobs[0].Action)
	assert.True(t, jobs[0].CleanDeps)
	assert.True(t, jobs[0].Distupgrade)
}

func TestTranslateKeepEmitsUserInstalled(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	p.Internalize(repo)
	p.CreateWhatprovides()

	jobs, err := translateRequest(p, *(&Request{}).Keep("numpy"), 0, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, JobUserInstalled, jobs[0].Action)
}

func TestTranslateFreezeRequiresInstalled(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	p.Internalize(repo)
	p.CreateWhatprovides()

	_, err := translateRequest(p, *(&Request{}).Freeze("numpy"), 0, map[pool.StringID]pool.SolvableID{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestTranslateFreezeLocksInstalledVersion(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	s := addSolvable(t, p, repo, "numpy", "1.23.0", "py39h1")
	p.Internalize(repo)
	p.CreateWhatprovides()

	installed := map[pool.StringID]pool.SolvableID{p.InternString("numpy"): s.ID()}
	jobs, err := translateRequest(p, *(&Request{}).Freeze("numpy"), 0, installed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, JobLock, jobs[0].Action)
	assert.False(t, jobs[0].PinExclusion)
	require.Len(t, jobs[0].Selection, 1)
	assert.Equal(t, []pool.SolvableID{s.ID()}, jobs[0].Selection[0].Set)
}

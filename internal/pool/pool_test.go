package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamba-org/solvecore/internal/version"
)

func TestInternStringIdempotent(t *testing.T) {
	p := New(Options{})
	seen := make(map[StringID]bool)
	for i := 0; i < 10000; i++ {
		s := randDistinct(i)
		id := p.InternString(s)
		assert.False(t, seen[id], "id %d reused for distinct string %q", id, s)
		seen[id] = true
		assert.Equal(t, id, p.InternString(s), "re-interning must be idempotent")
	}
	assert.Len(t, seen, 10000)
}

func randDistinct(i int) string {
	// deterministic distinct strings, no need for actual randomness
	return "pkg-" + string(rune('a'+i%26)) + string(rune(i))
}

func TestInternDependencyCanonicalizes(t *testing.T) {
	p := New(Options{})
	n := p.InternString("numpy")
	v := p.InternString("1.23.0")
	d1 := p.InternDependency(n, RelEq, v)
	d2 := p.InternDependency(n, RelEq, v)
	assert.Equal(t, d1, d2)
}

func TestWhatProvidesCompleteness(t *testing.T) {
	p := New(Options{})
	repo := p.AddRepo("main")

	py, err := p.AddSolvable(repo)
	require.NoError(t, err)
	py.Name = p.InternString("python")
	py.Version = version.MustParse("3.9.0")
	py.Build = "h1"

	np, err := p.AddSolvable(repo)
	require.NoError(t, err)
	np.Name = p.InternString("numpy")
	np.Version = version.MustParse("1.23.0")
	np.Build = "py39h1"
	dep, err := p.InternMatchSpec("python >=3.9,<3.10")
	require.NoError(t, err)
	np.Dependencies = []DepID{dep}

	p.Internalize(repo)
	p.CreateWhatprovides()

	provides, err := p.WhatProvides(dep)
	require.NoError(t, err)
	require.Len(t, provides, 1)
	assert.Equal(t, py.ID(), provides[0])
}

func TestWhatProvidesBeforeIndexBuilt(t *testing.T) {
	p := New(Options{})
	n := p.InternString("python")
	dep := p.InternDependency(n, RelNone, NoString)
	_, err := p.WhatProvides(dep)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
}

func TestNamespaceCallbackPanicCaptured(t *testing.T) {
	p := New(Options{})
	p.SetNamespaceCallback(func(pl *Pool, dep DepID) []SolvableID {
		panic("boom")
	})
	repo := p.AddRepo("main")
	p.Internalize(repo)
	p.CreateWhatprovides()

	n := p.InternString("virtual")
	dep := p.InternDependency(n, RelNamespace, NoString)
	_, err := p.WhatProvides(dep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	// The captured error is consumed by Err(); a second call finds nothing new.
	assert.NoError(t, p.Err())
}

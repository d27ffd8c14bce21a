package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamba-org/solvecore/internal/pool"
	"github.com/mamba-org/solvecore/internal/version"
)

func addSolvable(t *testing.T, p *pool.Pool, repo pool.RepoID, name, ver, build string, depends ...string) *pool.Solvable {
	t.Helper()
	s, err := p.AddSolvable(repo)
	require.NoError(t, err)
	s.Name = p.InternString(name)
	s.Version = version.MustParse(ver)
	s.Build = build
	for _, d := range depends {
		dep, err := p.InternMatchSpec(d)
		require.NoError(t, err)
		s.Dependencies = append(s.Dependencies, dep)
	}
	return s
}

// scenario 1 of spec.md §8: a linear satisfiable install pulls in python
// via numpy's dependency.
func TestSolveLinearSatisfiableInstall(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	py := addSolvable(t, p, repo, "python", "3.9.0", "h1")
	np := addSolvable(t, p, repo, "numpy", "1.23.0", "py39h1", "python >=3.9,<3.10")
	p.Internalize(repo)
	p.CreateWhatprovides()

	s := New(p, 0)
	require.NoError(t, s.AddRequest(*(&Request{}).Install("numpy=1.23")))
	dec, err := s.Solve()
	require.NoError(t, err)
	assert.True(t, dec.Has(py.ID()))
	assert.True(t, dec.Has(np.ID()))
	assert.Len(t, dec.Installed, 2)
}

// scenario 2: unsatisfiable via a version conflict on a shared dependency.
func TestSolveUnsatisfiableVersionConflict(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	addSolvable(t, p, repo, "a", "1", "0", "c >=2")
	addSolvable(t, p, repo, "b", "1", "0", "c <2")
	addSolvable(t, p, repo, "c", "1", "0")
	addSolvable(t, p, repo, "c", "2", "0")
	p.Internalize(repo)
	p.CreateWhatprovides()

	s := New(p, 0)
	require.NoError(t, s.AddRequest(*(&Request{}).Install("a")))
	require.NoError(t, s.AddRequest(*(&Request{}).Install("b")))
	_, err := s.Solve()
	require.Error(t, err)
	var unsolv *UnsolvableError
	require.ErrorAs(t, err, &unsolv)
	assert.NotEmpty(t, unsolv.ProblemRules())
}

// scenario 3: ForceReinstall targets the currently installed channel only.
func TestSolveForceReinstallChannelMatch(t *testing.T) {
	p := pool.New(pool.Options{})
	chX := p.AddRepo("chX")
	chY := p.AddRepo("chY")

	curX := addSolvable(t, p, chX, "tool", "1.0", "h0")
	addSolvable(t, p, chY, "tool", "1.0", "h0")

	p.Internalize(chX)
	p.Internalize(chY)
	p.CreateWhatprovides()

	s := New(p, ForceReinstall)
	// chX's copy is the one already present in the prefix.
	s.installed[p.InternString("tool")] = curX.ID()
	require.NoError(t, s.AddRequest(*(&Request{}).Install("tool")))
	dec, err := s.Solve()
	require.NoError(t, err)
	require.Len(t, dec.Installed, 1)
	assert.Equal(t, curX.ID(), dec.Installed[0])
}

// scenario 4: Pin locks out versions that would otherwise be preferred.
func TestSolvePinLocksOutVersions(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	lib1 := addSolvable(t, p, repo, "lib", "1.0", "h0")
	addSolvable(t, p, repo, "lib", "2.0", "h0")
	addSolvable(t, p, repo, "lib", "3.0", "h0")
	p.Internalize(repo)
	p.CreateWhatprovides()

	s := New(p, 0)
	require.NoError(t, s.AddRequest(*(&Request{}).Pin("lib<2")))
	require.NoError(t, s.AddRequest(*(&Request{}).Install("lib")))
	dec, err := s.Solve()
	require.NoError(t, err)
	require.Len(t, dec.Installed, 1)
	assert.Equal(t, lib1.ID(), dec.Installed[0])
}

// Without the pin, the newest version wins instead.
func TestSolvePrefersNewestWithoutPin(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	addSolvable(t, p, repo, "lib", "1.0", "h0")
	addSolvable(t, p, repo, "lib", "2.0", "h0")
	lib3 := addSolvable(t, p, repo, "lib", "3.0", "h0")
	p.Internalize(repo)
	p.CreateWhatprovides()

	s := New(p, 0)
	require.NoError(t, s.AddRequest(*(&Request{}).Install("lib")))
	dec, err := s.Solve()
	require.NoError(t, err)
	require.Len(t, dec.Installed, 1)
	assert.Equal(t, lib3.ID(), dec.Installed[0])
}

func TestSolvePinUnsatisfiableFailsAtTranslation(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	addSolvable(t, p, repo, "lib", "1.0", "h0")
	p.Internalize(repo)
	p.CreateWhatprovides()

	s := New(p, 0)
	err := s.AddRequest(*(&Request{}).Pin("lib>=5"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsatisfiablePin)
}

func TestSolveRemoveRejectsChannelPin(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	addSolvable(t, p, repo, "lib", "1.0", "h0")
	p.Internalize(repo)
	p.CreateWhatprovides()

	s := New(p, 0)
	err := s.AddRequest(*(&Request{}).Remove("main::lib", false))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

package transaction

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamba-org/solvecore/internal/pool"
	"github.com/mamba-org/solvecore/internal/prefix"
	"github.com/mamba-org/solvecore/internal/solver"
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

func TestFromSolverClassifiesInstallUpdateRemove(t *testing.T) {
	p := pool.New(pool.Options{})
	installedRepoID := p.AddRepo("installed")
	oldNumpy := addSolvable(t, p, installedRepoID, "numpy", "1.20.0", "0")
	oldScipy := addSolvable(t, p, installedRepoID, "scipy", "1.5.0", "0")
	p.Internalize(installedRepoID)
	require.NoError(t, p.MarkInstalled(installedRepoID))

	mainRepo := p.AddRepo("main")
	newNumpy := addSolvable(t, p, mainRepo, "numpy", "1.24.0", "0")
	requests := addSolvable(t, p, mainRepo, "requests", "2.31.0", "0")
	p.Internalize(mainRepo)
	p.CreateWhatprovides()

	installed := map[pool.StringID]pool.SolvableID{
		oldNumpy.Name: oldNumpy.ID(),
		oldScipy.Name: oldScipy.ID(),
	}
	installedDist := map[pool.StringID]string{
		oldNumpy.Name: "numpy-1.20.0-0",
		oldScipy.Name: "scipy-1.5.0-0",
	}
	decision := &solver.Decision{Installed: []pool.SolvableID{newNumpy.ID(), requests.ID()}}

	tx := FromSolver(p, decision, installed, installedDist)
	counts := tx.Classify()
	assert.Equal(t, 1, counts[ActionUpdate])  // numpy 1.20 -> 1.24
	assert.Equal(t, 1, counts[ActionRemove])  // scipy dropped
	assert.Equal(t, 1, counts[ActionInstall]) // requests added
}

func TestOrderPlacesPythonBeforeDependents(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	py := addSolvable(t, p, repo, "python", "3.11.0", "h1")
	np := addSolvable(t, p, repo, "numpy", "1.24.0", "py311h1", "python >=3.11")
	p.Internalize(repo)
	p.CreateWhatprovides()

	decision := &solver.Decision{Installed: []pool.SolvableID{py.ID(), np.ID()}}
	tx := FromSolver(p, decision, nil, nil)

	require.Len(t, tx.Steps, 2)
	assert.Equal(t, py.ID(), tx.Steps[0].Solvable)
	assert.True(t, tx.Steps[0].IsPython)
	assert.Equal(t, np.ID(), tx.Steps[1].Solvable)
	assert.True(t, tx.Steps[1].RequiresPython)
}

func TestOrderUnlinksBeforeLinksForSameName(t *testing.T) {
	p := pool.New(pool.Options{})
	installedRepo := p.AddRepo("installed")
	old := addSolvable(t, p, installedRepo, "numpy", "1.20.0", "0")
	p.Internalize(installedRepo)

	mainRepo := p.AddRepo("main")
	newer := addSolvable(t, p, mainRepo, "numpy", "1.24.0", "0")
	p.Internalize(mainRepo)
	p.CreateWhatprovides()

	installed := map[pool.StringID]pool.SolvableID{old.Name: old.ID()}
	installedDist := map[pool.StringID]string{old.Name: "numpy-1.20.0-0"}
	decision := &solver.Decision{Installed: []pool.SolvableID{newer.ID()}}

	tx := FromSolver(p, decision, installed, installedDist)
	require.Len(t, tx.Steps, 2)
	assert.Equal(t, StepUnlink, tx.Steps[0].Kind)
	assert.Equal(t, StepLink, tx.Steps[1].Kind)
}

func TestLinkFileHardlinksByDefault(t *testing.T) {
	extracted := t.TempDir()
	prefixDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(extracted, "lib.py"), []byte("print(1)"), 0o644))

	entry, err := LinkFile(extracted, prefixDir, PathSpec{RelPath: "lib.py", SHA256: "x", Size: 8}, LinkAuto, false, "", "")
	require.NoError(t, err)
	assert.Equal(t, "hardlink", entry.PathType)
	assert.FileExists(t, filepath.Join(prefixDir, "lib.py"))
}

func TestLinkFileSubstitutesTextPlaceholder(t *testing.T) {
	extracted := t.TempDir()
	prefixDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(extracted, "activate"), []byte("PREFIX=/placeholder/path"), 0o644))

	entry, err := LinkFile(extracted, prefixDir, PathSpec{RelPath: "activate", PrefixPlaceholder: "/placeholder/path", FileMode: "text"}, LinkAuto, false, "", "")
	require.NoError(t, err)
	assert.Equal(t, "copy", entry.PathType)

	got, err := os.ReadFile(filepath.Join(prefixDir, "activate"))
	require.NoError(t, err)
	assert.Equal(t, "PREFIX="+prefixDir, string(got))
}

func TestSubstituteBinaryPreservesLength(t *testing.T) {
	data := []byte("AAAA/placeholder/pathBBBB")
	out := substituteBinary(data, "/placeholder/path", "/x")
	assert.Len(t, out, len(data))
	assert.Equal(t, byte(0), out[len("AAAA/x")])
}

func TestNoarchPythonRewritesSitePackagesPath(t *testing.T) {
	extracted := t.TempDir()
	prefixDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(extracted, "site-packages", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(extracted, "site-packages", "pkg", "mod.py"), []byte("x"), 0o644))

	entry, err := LinkFile(extracted, prefixDir, PathSpec{RelPath: "site-packages/pkg/mod.py"}, LinkAuto, true, "lib/python3.11/site-packages", "bin")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("lib/python3.11/site-packages", "pkg", "mod.py"), entry.Path)
}

func TestUnlinkPackagePrunesEmptyParents(t *testing.T) {
	prefixDir := t.TempDir()
	full := filepath.Join(prefixDir, "lib", "pkgdir", "mod.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))

	rec := prefix.PrefixRecord{Paths: []prefix.PathEntry{{Path: "lib/pkgdir/mod.py"}}}
	require.NoError(t, UnlinkPackage(prefixDir, rec))

	_, err := os.Stat(filepath.Join(prefixDir, "lib"))
	assert.True(t, os.IsNotExist(err))
}

// fakeSource serves a package's extracted directory and paths.json
// in-memory for Execute tests, standing in for a cache+fetcher pipeline.
type fakeSource struct {
	dirs map[pool.SolvableID]string
	spec map[pool.SolvableID][]PathSpec
}

func (f *fakeSource) Ensure(ctx context.Context, sv *pool.Solvable) (string, []PathSpec, error) {
	return f.dirs[sv.ID()], f.spec[sv.ID()], nil
}

func TestExecuteLinksAndWritesHistory(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("main")
	pkg := addSolvable(t, p, repo, "requests", "2.31.0", "0")
	p.Internalize(repo)
	p.CreateWhatprovides()

	extracted := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(extracted, "requests.py"), []byte("x"), 0o644))

	tx := FromSolver(p, &solver.Decision{Installed: []pool.SolvableID{pkg.ID()}}, nil, nil)
	tx.RequestedSpecs = []string{"requests"}

	src := &fakeSource{
		dirs: map[pool.SolvableID]string{pkg.ID(): extracted},
		spec: map[pool.SolvableID][]PathSpec{pkg.ID(): {{RelPath: "requests.py"}}},
	}

	prefixDir := t.TempDir()
	err := tx.Execute(context.Background(), prefixDir, src, ExecOptions{Command: "solvecore install requests"})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(prefixDir, "requests.py"))
	recs, err := prefix.ListRecords(prefixDir)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "requests", recs[0].Name)

	entries, err := prefix.ReadHistory(prefixDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"requests-2.31.0-0"}, entries[0].Linked)
}

func TestExecuteRejectsReuse(t *testing.T) {
	p := pool.New(pool.Options{})
	tx := FromSolver(p, &solver.Decision{}, nil, nil)
	require.NoError(t, tx.Execute(context.Background(), t.TempDir(), &fakeSource{}, ExecOptions{}))
	err := tx.Execute(context.Background(), t.TempDir(), &fakeSource{}, ExecOptions{})
	assert.Error(t, err)
}

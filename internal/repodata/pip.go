package repodata

import (
	"github.com/mamba-org/solvecore/internal/pool"
	"github.com/mamba-org/solvecore/internal/version"
)

func parseVersionField(s string) (version.Version, error) {
	if s == "" {
		return version.Parse("0")
	}
	return version.Parse(s)
}

// applyPipPythonLinkage implements spec.md §4.B's add_pip_as_python_dependency
// rule, preserved exactly as the source specifies it (spec.md §9): only
// python solvables at version >= 2 gain a pip dependency, and pip solvables
// gain a python dependency so the pair orders correctly as a cycle.
func applyPipPythonLinkage(p *pool.Pool, all []pendingSolvable) {
	two, _ := version.Parse("2")
	for _, e := range all {
		switch p.String(e.sv.Name) {
		case "python":
			if e.sv.Version.Compare(two) >= 0 {
				if dep, err := p.InternMatchSpec("pip"); err == nil {
					e.sv.Dependencies = append(e.sv.Dependencies, dep)
				}
			}
		case "pip":
			if dep, err := p.InternMatchSpec("python"); err == nil {
				e.sv.Dependencies = append(e.sv.Dependencies, dep)
			}
		}
	}
}

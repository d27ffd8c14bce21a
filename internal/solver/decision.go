package solver

import (
	"sort"

	"github.com/mamba-org/solvecore/internal/pool"
)

// Decision is a successful Solve() result: the set of solvables that must
// be installed, per spec.md §4.C. Installed is sorted by id for the
// determinism property in spec.md §8 ("same Pool state and Request yield
// the same decision").
type Decision struct {
	Installed []pool.SolvableID
}

// Has reports whether id is part of the decision.
func (d *Decision) Has(id pool.SolvableID) bool {
	for _, x := range d.Installed {
		if x == id {
			return true
		}
	}
	return false
}

func newDecision(ids []pool.SolvableID) *Decision {
	out := append([]pool.SolvableID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return &Decision{Installed: out}
}

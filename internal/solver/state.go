package solver

import "github.com/mamba-org/solvecore/internal/pool"

// state is the solver's mutable search state. One selected solvable per
// name enforces the "no two installed solvables share a non-multiversion
// name" invariant by construction: selected is keyed by name. forbidden is
// seeded once before search (from Pin exclusions and Erase jobs) and never
// mutated mid-search, so only selected needs cloning across a backtrack.
type state struct {
	selected  map[pool.StringID]pool.SolvableID
	forbidden map[pool.SolvableID]bool
}

func newState() *state {
	return &state{
		selected:  make(map[pool.StringID]pool.SolvableID),
		forbidden: make(map[pool.SolvableID]bool),
	}
}

func (st *state) clone() *state {
	sel := make(map[pool.StringID]pool.SolvableID, len(st.selected))
	for k, v := range st.selected {
		sel[k] = v
	}
	return &state{selected: sel, forbidden: st.forbidden}
}

func (st *state) restore(snapshot *state) { st.selected = snapshot.selected }

func (st *state) forbid(id pool.SolvableID) { st.forbidden[id] = true }

func (st *state) filterForbidden(ids []pool.SolvableID) []pool.SolvableID {
	out := ids[:0:0]
	for _, id := range ids {
		if !st.forbidden[id] {
			out = append(out, id)
		}
	}
	return out
}

func (st *state) selectedIDs() []pool.SolvableID {
	out := make([]pool.SolvableID, 0, len(st.selected))
	for _, id := range st.selected {
		out = append(out, id)
	}
	return out
}

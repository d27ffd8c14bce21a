// Package transaction implements the Transaction engine from spec.md §4.F:
// turning a solver decision (or an explicit solvable list) into an ordered
// sequence of link/unlink steps, then executing them against a prefix with
// best-effort rollback on failure.
//
// Grounded on the teacher's txn_writer.go SafeWriter: a payload is first
// classified and staged, written to a temporary location, then swapped into
// place with a recorded undo list so a mid-way failure can be reversed —
// this package applies that same stage/swap/restore shape to per-file link
// and unlink operations instead of whole manifest/lock/vendor trees.
package transaction

import (
	"sort"

	"github.com/mamba-org/solvecore/internal/pool"
	"github.com/mamba-org/solvecore/internal/solver"
)

// StepKind distinguishes a link step from an unlink step.
type StepKind int

const (
	StepLink StepKind = iota
	StepUnlink
)

// Step is one atomic link or unlink operation in a Transaction's plan.
type Step struct {
	Kind StepKind
	Name pool.StringID

	// Solvable is set for StepLink: the package to materialize into the
	// prefix.
	Solvable pool.SolvableID

	// OldDist is set for StepUnlink: the conda-meta dist name
	// ("<name>-<version>-<build>") of the package being removed.
	OldDist string

	// RequiresPython marks a step spec.md §4.F says must be ordered
	// relative to a python link/unlink (its own dependency closure
	// contains python, or it is itself python).
	RequiresPython bool
	// IsPython marks the python package itself, the ordering anchor every
	// RequiresPython step is pinned against.
	IsPython bool
	// NoarchPython marks a noarch: python package, which must link after
	// python is present because its path rewriting depends on the
	// discovered python version.
	NoarchPython bool
}

// Action classifies one name's before/after state, per classify()'s
// contract in spec.md §4.F.
type Action int

const (
	ActionNoop Action = iota
	ActionInstall
	ActionRemove
	ActionUpdate
	ActionDowngrade
	ActionReinstall
	ActionChange
)

func (a Action) String() string {
	switch a {
	case ActionInstall:
		return "install"
	case ActionRemove:
		return "remove"
	case ActionUpdate:
		return "update"
	case ActionDowngrade:
		return "downgrade"
	case ActionReinstall:
		return "reinstall"
	case ActionChange:
		return "change"
	default:
		return "noop"
	}
}

// Transaction is the ordered plan built by FromSolver/FromSolvables.
type Transaction struct {
	p        *pool.Pool
	Steps    []Step
	actions  map[pool.StringID]Action
	executed bool

	// RequestedSpecs/RemoveSpecs/NeuteredSpecs feed the history journal
	// entry written after a successful Execute, per spec.md §4.F.
	RequestedSpecs []string
	RemoveSpecs    []string
	NeuteredSpecs  []string
}

// FromSolver builds a Transaction from a completed solver decision and the
// previously installed name->solvable map, per spec.md §4.F's
// from_solver() contract.
func FromSolver(p *pool.Pool, decision *solver.Decision, installed map[pool.StringID]pool.SolvableID, installedDist map[pool.StringID]string) *Transaction {
	newByName := make(map[pool.StringID]pool.SolvableID, len(decision.Installed))
	for _, sid := range decision.Installed {
		if sv := p.Solvable(sid); sv != nil {
			newByName[sv.Name] = sid
		}
	}
	return fromNameMaps(p, installed, installedDist, newByName)
}

// FromSolvables builds an explicit-mode Transaction directly from a target
// solvable set, bypassing the solver entirely — spec.md §4.F's
// from_solvables() contract, used for lockfiles and explicit URL lists.
func FromSolvables(p *pool.Pool, ids []pool.SolvableID, installed map[pool.StringID]pool.SolvableID, installedDist map[pool.StringID]string) *Transaction {
	newByName := make(map[pool.StringID]pool.SolvableID, len(ids))
	for _, sid := range ids {
		if sv := p.Solvable(sid); sv != nil {
			newByName[sv.Name] = sid
		}
	}
	return fromNameMaps(p, installed, installedDist, newByName)
}

func fromNameMaps(p *pool.Pool, installed map[pool.StringID]pool.SolvableID, installedDist map[pool.StringID]string, newByName map[pool.StringID]pool.SolvableID) *Transaction {
	t := &Transaction{p: p, actions: make(map[pool.StringID]Action)}
	pythonName, hasPython := p.FindString("python")

	names := make(map[pool.StringID]bool)
	for n := range installed {
		names[n] = true
	}
	for n := range newByName {
		names[n] = true
	}

	var steps []Step
	for name := range names {
		oldID, hadOld := installed[name]
		newID, hasNew := newByName[name]

		switch {
		case hadOld && !hasNew:
			steps = append(steps, unlinkStep(p, name, oldID, installedDist[name], hasPython, pythonName))
			t.actions[name] = ActionRemove

		case !hadOld && hasNew:
			steps = append(steps, linkStep(p, name, newID, hasPython, pythonName))
			t.actions[name] = ActionInstall

		case hadOld && hasNew && oldID != newID:
			steps = append(steps, unlinkStep(p, name, oldID, installedDist[name], hasPython, pythonName))
			steps = append(steps, linkStep(p, name, newID, hasPython, pythonName))
			t.actions[name] = classifyChange(p, oldID, newID)
		}
	}

	t.Steps = order(p, steps, pythonName)
	return t
}

// classifyChange compares oldID's and newID's version/build to decide
// whether swapping one for the other is an Update, Downgrade, or
// Reinstall, per spec.md §4.F's classify() contract.
func classifyChange(p *pool.Pool, oldID, newID pool.SolvableID) Action {
	oldSv, newSv := p.Solvable(oldID), p.Solvable(newID)
	if oldSv == nil || newSv == nil {
		return ActionChange
	}
	switch {
	case newSv.Version.Greater(oldSv.Version):
		return ActionUpdate
	case newSv.Version.Less(oldSv.Version):
		return ActionDowngrade
	default:
		// Same version: a different solvable id at an unchanged version
		// means the build or channel changed underneath it.
		return ActionReinstall
	}
}

func unlinkStep(p *pool.Pool, name pool.StringID, id pool.SolvableID, oldDist string, hasPython bool, pythonName pool.StringID) Step {
	sv := p.Solvable(id)
	s := Step{Kind: StepUnlink, Name: name, OldDist: oldDist}
	if hasPython && name == pythonName {
		s.IsPython = true
	}
	if hasPython && !s.IsPython && dependsOnPython(p, sv, pythonName) {
		s.RequiresPython = true
	}
	return s
}

func linkStep(p *pool.Pool, name pool.StringID, id pool.SolvableID, hasPython bool, pythonName pool.StringID) Step {
	sv := p.Solvable(id)
	s := Step{Kind: StepLink, Name: name, Solvable: id}
	if hasPython && name == pythonName {
		s.IsPython = true
	}
	if sv != nil && sv.Noarch == pool.NoarchPython {
		s.NoarchPython = true
	}
	if hasPython && !s.IsPython && dependsOnPython(p, sv, pythonName) {
		s.RequiresPython = true
	}
	return s
}

// dependsOnPython reports whether sv's direct dependency edges name
// python. spec.md §4.F only requires ordering relative to a direct
// dependency closure; a single-level check is sufficient here because
// python itself is always linked in the same transaction when anything
// beneath it changes (the solver's hard-dependency edges guarantee python
// is already a selected name).
func dependsOnPython(p *pool.Pool, sv *pool.Solvable, pythonName pool.StringID) bool {
	if sv == nil {
		return false
	}
	for _, d := range sv.Dependencies {
		name, _, _ := p.Dependency(d)
		if name == pythonName {
			return true
		}
	}
	return false
}

// order applies spec.md §4.F's ordering rules: unlink-before-link per name
// (already adjacent from fromNameMaps), a global python-first constraint,
// and a stable (name, build_number desc, timestamp desc) tie-break within
// each kind.
func order(p *pool.Pool, steps []Step, pythonName pool.StringID) []Step {
	unlinks := make([]Step, 0, len(steps))
	links := make([]Step, 0, len(steps))
	for _, s := range steps {
		if s.Kind == StepUnlink {
			unlinks = append(unlinks, s)
		} else {
			links = append(links, s)
		}
	}

	// python-dependent removals must precede a python removal; everything
	// else among unlinks sorts by dist name for determinism.
	sort.SliceStable(unlinks, func(i, j int) bool {
		if unlinks[i].IsPython != unlinks[j].IsPython {
			return !unlinks[i].IsPython
		}
		return unlinks[i].OldDist < unlinks[j].OldDist
	})
	sort.SliceStable(links, func(i, j int) bool {
		return lessLink(p, links[i], links[j])
	})

	out := make([]Step, 0, len(steps))
	out = append(out, unlinks...)
	out = append(out, links...)
	return out
}

func lessLink(p *pool.Pool, a, b Step) bool {
	// python itself links first among links.
	if a.IsPython != b.IsPython {
		return a.IsPython
	}
	if a.RequiresPython != b.RequiresPython {
		return !a.RequiresPython
	}
	// noarch:python packages link after python is present, i.e. after
	// every non-noarch link that isn't itself waiting on python.
	if a.NoarchPython != b.NoarchPython {
		return !a.NoarchPython
	}
	sa, sb := p.Solvable(a.Solvable), p.Solvable(b.Solvable)
	if sa == nil || sb == nil {
		return p.String(a.Name) < p.String(b.Name)
	}
	if sa.Name != sb.Name {
		return p.String(sa.Name) < p.String(sb.Name)
	}
	if sa.BuildNumber != sb.BuildNumber {
		return sa.BuildNumber > sb.BuildNumber
	}
	if sa.Timestamp != sb.Timestamp {
		return sa.Timestamp > sb.Timestamp
	}
	return sa.ID() < sb.ID()
}

// Classify returns per-name action counts, per spec.md §4.F's classify()
// contract.
func (t *Transaction) Classify() map[Action]int {
	counts := make(map[Action]int)
	for _, a := range t.actions {
		counts[a]++
	}
	return counts
}

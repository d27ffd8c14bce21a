// Package solver implements the SAT-style dependency solver from spec.md
// §4.C: job translation from a Request, a CDCL-flavored decision procedure
// (grounded on the teacher's backtracking project/version-queue solver in
// solver.go, selection.go and version_queue.go), and a problems graph for
// unsatisfiable requests.
package solver

// Flags is the closed set of solver flags from spec.md §4.C, encoded as a
// bitmask the way golang-dep's SolveParameters encodes its boolean knobs,
// generalized from a struct of named bools to a flag set since the spec
// enumerates them as independent toggles.
type Flags uint32

const (
	AllowDowngrade Flags = 1 << iota
	AllowUninstall
	StrictRepoPriority
	ForceReinstall
	NoDeps
	OnlyDeps
	BestObeyPolicy
	AddAlreadyRecommended
	IgnoreRecommended
	KeepOrphans
	BreakOrphans
	FocusInstalled
	FocusBest
	NoAutotarget
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

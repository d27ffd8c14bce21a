package solver

import "github.com/pkg/errors"

// Error kinds from spec.md §7's taxonomy that the solver and its job
// translation can raise directly. Other kinds (NetworkTransient,
// FilesystemError, ...) belong to other components.
var (
	// ErrInvalidSpec is returned by job translation for a bad match-spec, or
	// for a Remove whose spec pins a channel (disallowed per spec.md §4.C).
	ErrInvalidSpec = errors.New("solver: invalid spec")
	// ErrUnsatisfiablePin is returned when a Pin request matches no
	// available solvable for its name.
	ErrUnsatisfiablePin = errors.New("solver: pin matches no solvable")
)

// ProblemKind enumerates the rule kinds a Solver can attach to an
// unsatisfiable result, per spec.md §4.C.
type ProblemKind int

const (
	ProblemNothingProvides ProblemKind = iota
	ProblemPackageConflicts
	ProblemSameName
	ProblemUpdate
	ProblemJob
	ProblemLearnt
	ProblemStrictRepoPriority
)

func (k ProblemKind) String() string {
	switch k {
	case ProblemNothingProvides:
		return "NothingProvides"
	case ProblemPackageConflicts:
		return "PackageConflicts"
	case ProblemSameName:
		return "SameName"
	case ProblemUpdate:
		return "Update"
	case ProblemJob:
		return "Job"
	case ProblemLearnt:
		return "Learnt"
	case ProblemStrictRepoPriority:
		return "StrictRepoPriority"
	default:
		return "Unknown"
	}
}

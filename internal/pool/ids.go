package pool

// StringID, DepID, SolvableID and RepoID are the Pool's interned integer
// identifiers (spec.md §3). They are stable for the lifetime of the Pool
// and never recycled: removing a Repo tombstones its solvable slots.
type StringID uint32
type DepID uint32
type SolvableID uint32
type RepoID uint32

// NoString, NoDep, NoSolvable and NoRepo are the reserved zero/nil ids.
const (
	NoString   StringID   = 0
	NoDep      DepID      = 0
	NoSolvable SolvableID = 0
	NoRepo     RepoID     = 0
)

// Relation is a version-relation operator for a dependency triple.
type Relation int

const (
	RelNone Relation = iota // bare name dependency, no version relation
	RelLess
	RelLessEq
	RelEq
	RelNotEq
	RelGreaterEq
	RelGreater
	RelCompatible // ~=
	RelMatchSpec  // relation id is a full parsed match-spec, version_id unused
	RelNamespace  // triggers the namespace callback during whatprovides resolution
)

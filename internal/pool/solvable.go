package pool

import "github.com/mamba-org/solvecore/internal/version"

// NoarchType is the platform-independence flavor of a solvable (spec.md §3).
type NoarchType int

const (
	NoarchNone NoarchType = iota
	NoarchGeneric
	NoarchPython
)

// Solvable is the immutable record of one candidate package, owned by
// exactly one Repo. Fields are set through addSolvable's mutable view and
// become frozen once the owning Repo is internalized.
type Solvable struct {
	id      SolvableID
	repo    RepoID
	Name    StringID
	Version version.Version
	Build   string
	BuildNumber int
	Noarch  NoarchType
	Subdir  string
	Channel string
	Filename string
	Size     int64
	Timestamp int64
	SHA256    string
	MD5       string
	Signatures []string

	Dependencies  []DepID
	Constraints   []DepID
	Provides      []DepID
	TrackFeatures []string
}

// ID returns the solvable's interned identifier.
func (s *Solvable) ID() SolvableID { return s.id }

// Repo returns the id of the Repo this solvable belongs to.
func (s *Solvable) Repo() RepoID { return s.repo }

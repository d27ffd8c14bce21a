// Package pool implements the interning pool and whatprovides index
// described in spec.md §4.A: a monotonic-id arena for strings, dependency
// triples, solvables and repos, generalizing the teacher's deducerTrie
// (gps/typed_radix.go) and the source-manager-facing ProjectIdentifier
// interning in golang-dep's bridge.go.
package pool

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/matchspec"
)

// ErrIndexNotBuilt is returned by operations that require createWhatprovides
// to have run first.
var ErrIndexNotBuilt = errors.New("pool: whatprovides index not built")

type depKey struct {
	name StringID
	rel  Relation
	ver  StringID
}

// NamespaceCallback resolves a namespace-relation dependency id to a set of
// solvables, the way libsolv's nscallback hook does. It must be
// exception-safe: a panic raised inside it is captured by the Pool and
// re-raised via Err() after the callback boundary, per spec.md §4.A.
type NamespaceCallback func(p *Pool, dep DepID) []SolvableID

// Pool is the central interning arena. It is not safe for concurrent
// mutation; after CreateWhatprovides it may be shared read-only across
// goroutines (see spec.md §5's Pool sharing rule).
type Pool struct {
	log logrus.FieldLogger

	strings    []string
	stringTrie *internedTrie

	deps       []dependency
	depIndex   map[depKey]DepID
	matchSpecs map[DepID]matchspec.MatchSpec

	solvables []*Solvable
	repos     []*Repo
	installed RepoID // 0 (NoRepo) means none marked installed

	nameIdx      nameIndex
	whatprovides map[DepID][]SolvableID
	indexBuilt   bool

	nsCallback NamespaceCallback
	capturedErr error // captured panic from the namespace callback, per §4.A
}

type dependency struct {
	name StringID
	rel  Relation
	ver  StringID
}

// Options configures a new Pool.
type Options struct {
	Logger            logrus.FieldLogger
	ExpectedSolvables int
}

// New creates an empty Pool. Id 0 is reserved (NoString/NoDep/...) in every
// arena, so the first interned value always gets id 1.
func New(opts Options) *Pool {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := opts.ExpectedSolvables
	p := &Pool{
		log:          log,
		strings:      make([]string, 1, n+1),
		stringTrie:   newInternedTrie(),
		deps:         make([]dependency, 1),
		depIndex:     make(map[depKey]DepID),
		matchSpecs:   make(map[DepID]matchspec.MatchSpec),
		solvables:    make([]*Solvable, 1, n+1),
		repos:        make([]*Repo, 1),
		whatprovides: make(map[DepID][]SolvableID),
	}
	return p
}

// SetNamespaceCallback installs the hook consulted by CreateWhatprovides and
// by the solver for RelNamespace dependencies.
func (p *Pool) SetNamespaceCallback(cb NamespaceCallback) { p.nsCallback = cb }

// Err returns and clears any error captured from the namespace callback
// boundary. WhatProvides, SelectSolvables and the solver's Solve recheck
// this, per the exception-safety contract in spec.md §4.A / §9.
func (p *Pool) Err() error {
	err := p.capturedErr
	p.capturedErr = nil
	return err
}

func (p *Pool) recoverNamespaceCall(dep DepID) (result []SolvableID) {
	defer func() {
		if r := recover(); r != nil {
			p.capturedErr = errors.Errorf("pool: namespace callback panicked: %v", r)
			result = nil
		}
	}()
	return p.nsCallback(p, dep)
}

// InternString idempotently interns a byte string and returns its id.
func (p *Pool) InternString(s string) StringID {
	if id, ok := p.stringTrie.get(s); ok {
		return id
	}
	id := StringID(len(p.strings))
	p.strings = append(p.strings, s)
	p.stringTrie.insert(s, id)
	return id
}

// FindString looks up a string's id without interning it.
func (p *Pool) FindString(s string) (StringID, bool) {
	return p.stringTrie.get(s)
}

// String returns the string a StringID was interned from.
func (p *Pool) String(id StringID) string {
	if int(id) >= len(p.strings) {
		return ""
	}
	return p.strings[id]
}

// InternDependency idempotently interns a bare name or name+relation+version
// triple. Equal triples dedupe to the same id.
func (p *Pool) InternDependency(name StringID, rel Relation, ver StringID) DepID {
	key := depKey{name: name, rel: rel, ver: ver}
	if id, ok := p.depIndex[key]; ok {
		return id
	}
	id := DepID(len(p.deps))
	p.deps = append(p.deps, dependency{name: name, rel: rel, ver: ver})
	p.depIndex[key] = id
	return id
}

// Dependency returns the triple a DepID was interned from.
func (p *Pool) Dependency(id DepID) (name StringID, rel Relation, ver StringID) {
	if int(id) >= len(p.deps) {
		return NoString, RelNone, NoString
	}
	d := p.deps[id]
	return d.name, d.rel, d.ver
}

// MatchSpecOf returns the parsed MatchSpec backing a RelMatchSpec dependency,
// if any.
func (p *Pool) MatchSpecOf(id DepID) (matchspec.MatchSpec, bool) {
	ms, ok := p.matchSpecs[id]
	return ms, ok
}

// InternMatchSpec parses and interns a match-spec string as a dependency.
// Fails with an InvalidSpec-class error when the grammar is violated.
func (p *Pool) InternMatchSpec(text string) (DepID, error) {
	ms, err := matchspec.Parse(text)
	if err != nil {
		return NoDep, errors.Wrap(err, "pool: InternMatchSpec")
	}
	nameID := p.InternString(ms.Name)
	verID := p.InternString(ms.Canonical())
	id := p.InternDependency(nameID, RelMatchSpec, verID)
	p.matchSpecs[id] = ms
	return id, nil
}

// AddRepo creates a new, empty Repo and returns its id.
func (p *Pool) AddRepo(name string) RepoID {
	id := RepoID(len(p.repos))
	p.repos = append(p.repos, &Repo{id: id, Name: name, Order: len(p.repos)})
	return id
}

// Repo returns the Repo for an id, or nil if it has been removed.
func (p *Pool) Repo(id RepoID) *Repo {
	if int(id) >= len(p.repos) {
		return nil
	}
	return p.repos[id]
}

// Repos returns every live repo in the pool, in channel order.
func (p *Pool) Repos() []*Repo {
	out := make([]*Repo, 0, len(p.repos)-1)
	for _, r := range p.repos[1:] {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// MarkInstalled marks repo as the (at most one) installed repo, per the
// Pool invariant in spec.md §3.
func (p *Pool) MarkInstalled(id RepoID) error {
	if p.installed != NoRepo && p.installed != id {
		return errors.Errorf("pool: repo %d already marked installed, cannot also mark %d", p.installed, id)
	}
	r := p.Repo(id)
	if r == nil {
		return errors.Errorf("pool: no such repo %d", id)
	}
	r.Installed = true
	p.installed = id
	return nil
}

// InstalledRepo returns the repo marked installed, or nil.
func (p *Pool) InstalledRepo() *Repo {
	if p.installed == NoRepo {
		return nil
	}
	return p.Repo(p.installed)
}

// RemoveRepo drops a repo. Its solvable slots are tombstoned whatever
// reuseIDs says; ids are never recycled, and reuseIDs=true only adds a
// debug log entry.
func (p *Pool) RemoveRepo(id RepoID, reuseIDs bool) {
	r := p.Repo(id)
	if r == nil {
		return
	}
	for _, sid := range r.Solvables() {
		if int(sid) < len(p.solvables) {
			p.solvables[sid] = nil
		}
	}
	p.repos[id] = nil
	if p.installed == id {
		p.installed = NoRepo
	}
	p.indexBuilt = false // whatprovides must be rebuilt; it may reference freed ids
	if reuseIDs {
		p.log.WithFields(logrus.Fields{"repo": r.Name}).Debug("pool: repo removed, reuseIDs requested; ids are not recycled")
	}
}

// AddSolvable allocates a new solvable owned by repo and returns a pointer
// to its mutable view plus its id. The caller sets fields through the
// pointer before the owning Repo is internalized.
func (p *Pool) AddSolvable(repoID RepoID) (*Solvable, error) {
	r := p.Repo(repoID)
	if r == nil {
		return nil, errors.Errorf("pool: no such repo %d", repoID)
	}
	id := SolvableID(len(p.solvables))
	s := &Solvable{id: id, repo: repoID}
	p.solvables = append(p.solvables, s)
	if r.internal {
		r.pendingAdds = append(r.pendingAdds, id)
	} else {
		r.solvables = append(r.solvables, id)
	}
	p.indexBuilt = false
	return s, nil
}

// Solvable returns the solvable for an id, or nil if tombstoned/unset.
func (p *Pool) Solvable(id SolvableID) *Solvable {
	if int(id) >= len(p.solvables) {
		return nil
	}
	return p.solvables[id]
}

// Internalize finalizes pending additions to a repo; after this call,
// further AddSolvable calls against repoID are folded in as new pending
// additions until the next Internalize, per spec.md §4.B.
func (p *Pool) Internalize(repoID RepoID) {
	r := p.Repo(repoID)
	if r == nil {
		return
	}
	r.solvables = append(r.solvables, r.pendingAdds...)
	r.pendingAdds = nil
	r.internal = true
	p.indexBuilt = false
}

func (p *Pool) String_() string { return fmt.Sprintf("Pool{strings=%d deps=%d solvables=%d repos=%d}", len(p.strings), len(p.deps), len(p.solvables), len(p.repos)) }

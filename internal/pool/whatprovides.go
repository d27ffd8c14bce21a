package pool

import (
	"strconv"

	"github.com/mamba-org/solvecore/internal/matchspec"
	"github.com/mamba-org/solvecore/internal/version"
)

// nameIndex maps an interned package name to every solvable that provides
// it, either via an explicit Provides entry or the implicit name=version
// self-provide every solvable carries.
type nameIndex map[StringID][]SolvableID

// CreateWhatprovides (re)builds the dependency -> solvables index, per
// spec.md §4.A. It must be called before Solve() or SelectSolvables(); it
// also clears any previously captured namespace-callback error, since a
// rebuild re-establishes a consistent view of the pool.
func (p *Pool) CreateWhatprovides() {
	p.capturedErr = nil
	idx := make(nameIndex)
	for _, r := range p.repos {
		if r == nil {
			continue
		}
		for _, sid := range r.Solvables() {
			s := p.Solvable(sid)
			if s == nil {
				continue
			}
			idx[s.Name] = append(idx[s.Name], sid)
			for _, depID := range s.Provides {
				name, _, _ := p.Dependency(depID)
				idx[name] = append(idx[name], sid)
			}
		}
	}
	p.nameIdx = idx
	p.whatprovides = make(map[DepID][]SolvableID)
	p.indexBuilt = true

	// Eagerly resolve every dependency id referenced by any solvable, to
	// satisfy the completeness invariant in spec.md §3 ("whatprovides is a
	// complete index"): every dep id present in any solvable's Dependencies,
	// Constraints or Provides list is resolvable without a further rebuild.
	for _, r := range p.repos {
		if r == nil {
			continue
		}
		for _, sid := range r.Solvables() {
			s := p.Solvable(sid)
			if s == nil {
				continue
			}
			for _, d := range s.Dependencies {
				p.resolve(d)
			}
			for _, d := range s.Constraints {
				p.resolve(d)
			}
		}
	}
}

// WhatProvides returns every solvable satisfying dep, resolving and caching
// on first use. Returns ErrIndexNotBuilt if CreateWhatprovides has not run.
func (p *Pool) WhatProvides(dep DepID) ([]SolvableID, error) {
	if !p.indexBuilt {
		return nil, ErrIndexNotBuilt
	}
	return p.resolve(dep), p.Err()
}

func (p *Pool) resolve(dep DepID) []SolvableID {
	if cached, ok := p.whatprovides[dep]; ok {
		return cached
	}

	name, rel, ver := p.Dependency(dep)

	if rel == RelNamespace {
		if p.nsCallback == nil {
			p.whatprovides[dep] = nil
			return nil
		}
		res := p.recoverNamespaceCall(dep)
		p.whatprovides[dep] = res
		return res
	}

	candidates := p.nameIdx[name]
	if rel == RelNone {
		p.whatprovides[dep] = candidates
		return candidates
	}

	if rel == RelMatchSpec {
		ms, ok := p.matchSpecs[dep]
		if !ok {
			p.whatprovides[dep] = nil
			return nil
		}
		var out []SolvableID
		for _, sid := range candidates {
			s := p.Solvable(sid)
			if s == nil {
				continue
			}
			if !ms.Version.Matches(s.Version) {
				continue
			}
			if !ms.MatchesBuild(s.Build) {
				continue
			}
			if ms.Channel != "" && ms.Channel != s.Channel {
				continue
			}
			if ms.Subdir != "" && ms.Subdir != s.Subdir {
				continue
			}
			if ms.BuildNumber != nil && !buildNumberMatches(*ms.BuildNumber, s.BuildNumber) {
				continue
			}
			out = append(out, sid)
		}
		p.whatprovides[dep] = out
		return out
	}

	// Simple relation (RelLess, RelEq, ...) against an interned version string.
	target, err := version.Parse(p.String(ver))
	if err != nil {
		p.whatprovides[dep] = nil
		return nil
	}
	var out []SolvableID
	for _, sid := range candidates {
		s := p.Solvable(sid)
		if s == nil {
			continue
		}
		if relationMatches(rel, s.Version.Compare(target)) {
			out = append(out, sid)
		}
	}
	p.whatprovides[dep] = out
	return out
}

func relationMatches(rel Relation, cmp int) bool {
	switch rel {
	case RelLess:
		return cmp < 0
	case RelLessEq:
		return cmp <= 0
	case RelEq:
		return cmp == 0
	case RelNotEq:
		return cmp != 0
	case RelGreaterEq:
		return cmp >= 0
	case RelGreater:
		return cmp > 0
	case RelCompatible:
		return cmp >= 0
	default:
		return false
	}
}

// buildNumberMatches evaluates a build_number bracket predicate (parsed as a
// matchspec.Predicate whose Ver is the bare integer encoded as a version)
// against a solvable's build number, by comparing through the same Version
// comparator the predicate already carries.
func buildNumberMatches(pred matchspec.Predicate, n int) bool {
	nv, err := version.Parse(strconv.Itoa(n))
	if err != nil {
		return false
	}
	return pred.Matches(nv)
}

package solver

import (
	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/pool"
	"github.com/mamba-org/solvecore/internal/problems"
)

// Solver runs the job-driven search described in spec.md §4.C: a
// deterministic backtracking stand-in for the source's libsolv CDCL
// procedure, grounded on the shape of the teacher's solver.go (selection
// stack driven off a versionQueue per project) but working over names and
// match-spec dependencies instead of semver project constraints. It is
// strictly single-threaded and treats the Pool as a read-only snapshot
// once CreateWhatprovides has run, per spec.md §5.
type Solver struct {
	p     *pool.Pool
	flags Flags
	log   logrus.FieldLogger

	installed map[pool.StringID]pool.SolvableID
	jobs      []Job
	edges     []problems.RawEdge
}

// New constructs a Solver bound to a Pool snapshot and flag set. The
// currently installed repo (if any) seeds the name->solvable map UpdateAll
// and ForceReinstall consult.
func New(p *pool.Pool, flags Flags) *Solver {
	installed := make(map[pool.StringID]pool.SolvableID)
	if r := p.InstalledRepo(); r != nil {
		for _, sid := range r.Solvables() {
			if s := p.Solvable(sid); s != nil {
				installed[s.Name] = sid
			}
		}
	}
	return &Solver{p: p, flags: flags, log: logrus.StandardLogger(), installed: installed}
}

// AddRequest translates req into solver jobs and appends them, per the
// table in spec.md §4.C. It may be called more than once before Solve.
func (s *Solver) AddRequest(req Request) error {
	jobs, err := translateRequest(s.p, req, s.flags, s.installed)
	if err != nil {
		return err
	}
	s.jobs = append(s.jobs, jobs...)
	return nil
}

// requirement is one name that must resolve to a selected solvable. soft
// marks a "constrains" edge: it restricts a name's candidates if and only
// if something else already pulled that name in, but never pulls it in by
// itself, per conda's constrains semantics.
type requirement struct {
	name   pool.StringID
	selOps []pool.SelectionOp
	soft   bool
}

// Solve runs the decision procedure to completion. On success it returns a
// Decision; on failure it returns a *UnsolvableError carrying the problem
// rules consumed by problem_rules()/explain().
func (s *Solver) Solve() (*Decision, error) {
	if err := s.p.Err(); err != nil {
		return nil, err
	}

	st := newState()
	var queue []requirement

	for _, j := range s.jobs {
		switch j.Action {
		case JobLock:
			if j.PinExclusion {
				if len(j.Selection) > 0 {
					for _, id := range j.Selection[0].Set {
						st.forbid(id)
					}
				}
			} else {
				queue = append(queue, requirement{name: j.Name, selOps: j.Selection})
			}
		case JobErase:
			ids, err := s.p.SelectSolvables(j.Selection)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				st.forbid(id)
			}
		case JobUpdateAll:
			for name := range s.installed {
				dep := s.p.InternDependency(name, pool.RelNone, pool.NoString)
				queue = append(queue, requirement{name: name, selOps: []pool.SelectionOp{{Kind: pool.SelByProvides, Dep: dep}}})
			}
		default: // JobInstall, JobUpdate, JobUserInstalled
			queue = append(queue, requirement{name: j.Name, selOps: j.Selection})
		}
	}

	ok, rules := s.resolve(st, queue)
	if !ok {
		return nil, &UnsolvableError{p: s.p, Rules: rules, edges: s.edges}
	}
	return newDecision(st.selectedIDs()), nil
}

// resolve is the recursive search core: pop one requirement, either verify
// it against an already-selected solvable for its name or try each
// remaining candidate in tie-break order, backtracking on failure.
func (s *Solver) resolve(st *state, queue []requirement) (bool, []ProblemRule) {
	if len(queue) == 0 {
		return true, nil
	}
	req, rest := queue[0], queue[1:]

	if sid, ok := st.selected[req.name]; ok {
		if !s.satisfies(sid, req) {
			return false, []ProblemRule{{Kind: ProblemPackageConflicts, Name: req.name}}
		}
		return s.resolve(st, rest)
	}

	if req.soft {
		return s.resolve(st, rest)
	}

	candidates, err := s.candidatesFor(st, req)
	if err != nil || len(candidates) == 0 {
		return false, []ProblemRule{{Kind: ProblemNothingProvides, Name: req.name}}
	}

	cq := newCandidateQueue(s.p, candidates)
	var rules []ProblemRule
	for {
		sid, ok := cq.current()
		if !ok {
			break
		}
		snapshot := st.clone()
		st.selected[req.name] = sid

		next := make([]requirement, 0, len(rest)+4)
		next = append(next, rest...)
		next = append(next, s.expand(sid)...)

		ok2, subRules := s.resolve(st, next)
		if ok2 {
			return true, nil
		}
		rules = append(rules, subRules...)
		st.restore(snapshot)
		cq.advance()
	}
	rules = append(rules, ProblemRule{Kind: ProblemJob, Name: req.name})
	return false, rules
}

// expand turns sid's dependency and constraint edges into new
// requirements: dependencies are hard (they must resolve), constraints are
// soft (spec.md §4.C / §3's "constrains" semantics).
func (s *Solver) expand(sid pool.SolvableID) []requirement {
	sv := s.p.Solvable(sid)
	if sv == nil {
		return nil
	}
	out := make([]requirement, 0, len(sv.Dependencies)+len(sv.Constraints))
	for _, d := range sv.Dependencies {
		name, _, _ := s.p.Dependency(d)
		s.edges = append(s.edges, problems.RawEdge{From: sv.Name, To: name, Dep: d})
		out = append(out, requirement{name: name, selOps: []pool.SelectionOp{{Kind: pool.SelByProvides, Dep: d}}})
	}
	for _, d := range sv.Constraints {
		name, _, _ := s.p.Dependency(d)
		s.edges = append(s.edges, problems.RawEdge{From: sv.Name, To: name, Dep: d})
		out = append(out, requirement{name: name, selOps: []pool.SelectionOp{{Kind: pool.SelByProvides, Dep: d}}, soft: true})
	}
	return out
}

func (s *Solver) satisfies(sid pool.SolvableID, req requirement) bool {
	ids, err := s.p.SelectSolvables(req.selOps)
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == sid {
			return true
		}
	}
	return false
}

func (s *Solver) candidatesFor(st *state, req requirement) ([]pool.SolvableID, error) {
	ids, err := s.p.SelectSolvables(req.selOps)
	if err != nil {
		return nil, err
	}
	ids = st.filterForbidden(ids)
	if s.flags.Has(StrictRepoPriority) {
		ids = filterStrictPriority(s.p, ids)
	}
	return ids, nil
}

// filterStrictPriority keeps only the candidates belonging to the
// highest-priority repo present, per spec.md §4.C's StrictRepoPriority
// rule: a name available in a higher-priority channel forbids that name's
// solvables in lower-priority channels.
func filterStrictPriority(p *pool.Pool, ids []pool.SolvableID) []pool.SolvableID {
	best := 0
	haveBest := false
	for _, id := range ids {
		sv := p.Solvable(id)
		if sv == nil {
			continue
		}
		if r := p.Repo(sv.Repo()); r != nil {
			if !haveBest || r.Priority > best {
				best = r.Priority
				haveBest = true
			}
		}
	}
	if !haveBest {
		return ids
	}
	out := ids[:0:0]
	for _, id := range ids {
		sv := p.Solvable(id)
		if sv == nil {
			continue
		}
		if r := p.Repo(sv.Repo()); r != nil && r.Priority == best {
			out = append(out, id)
		}
	}
	return out
}

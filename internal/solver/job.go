package solver

import (
	"github.com/pkg/errors"

	"github.com/mamba-org/solvecore/internal/matchspec"
	"github.com/mamba-org/solvecore/internal/pool"
)

// JobAction is the solver-internal job type produced from a Request item,
// per the translation table in spec.md §4.C.
type JobAction int

const (
	JobInstall JobAction = iota
	JobErase
	JobUpdate
	JobUpdateAll
	JobUserInstalled
	JobLock
)

// Job is one translated unit of solver input.
type Job struct {
	Action      JobAction
	Name        pool.StringID
	Selection   []pool.SelectionOp
	CleanDeps   bool
	Distupgrade bool

	// PinExclusion distinguishes the two JobLock shapes: false means
	// Selection is the single exact solvable a Freeze locked onto, true
	// means Selection's set is the complement a Pin forbade (see
	// excludedAsForbidden).
	PinExclusion bool
}

// parsedSpec bundles specText's parsed form with its interned name and its
// interned match-spec dependency, so each translateRequest branch gets all
// three from one parseSpec call (InternMatchSpec parses the text again
// internally).
type parsedSpec struct {
	ms   matchspec.MatchSpec
	name pool.StringID
	dep  pool.DepID
}

func parseSpec(p *pool.Pool, specText string) (parsedSpec, error) {
	ms, err := matchspec.Parse(specText)
	if err != nil {
		return parsedSpec{}, errors.Wrapf(ErrInvalidSpec, "%q: %v", specText, err)
	}
	dep, err := p.InternMatchSpec(specText)
	if err != nil {
		return parsedSpec{}, errors.Wrapf(ErrInvalidSpec, "%q: %v", specText, err)
	}
	return parsedSpec{ms: ms, name: p.InternString(ms.Name), dep: dep}, nil
}

// translateRequest converts a Request into the Jobs the decision procedure
// consumes, per the table in spec.md §4.C. It may fail synchronously for
// malformed specs, a Remove pinning a channel, or an unsatisfiable Pin.
func translateRequest(p *pool.Pool, req Request, flags Flags, installed map[pool.StringID]pool.SolvableID) ([]Job, error) {
	var jobs []Job
	for _, item := range req.Items {
		switch item.Kind {
		case ReqInstall:
			ps, err := parseSpec(p, item.Spec)
			if err != nil {
				return nil, err
			}
			if flags.Has(ForceReinstall) {
				if curID, ok := installed[ps.name]; ok && p.Solvable(curID) != nil {
					jobs = append(jobs, Job{
						Action:    JobInstall,
						Name:      ps.name,
						Selection: []pool.SelectionOp{{Kind: pool.SelOneOf, Set: []pool.SolvableID{curID}}},
					})
					continue
				}
			}
			jobs = append(jobs, Job{
				Action:    JobInstall,
				Name:      ps.name,
				Selection: []pool.SelectionOp{{Kind: pool.SelByProvides, Dep: ps.dep}},
			})

		case ReqRemove:
			ps, err := parseSpec(p, item.Spec)
			if err != nil {
				return nil, err
			}
			if ps.ms.Channel != "" {
				return nil, errors.Wrapf(ErrInvalidSpec, "remove %q: spec pins a channel", item.Spec)
			}
			jobs = append(jobs, Job{
				Action:    JobErase,
				Name:      ps.name,
				CleanDeps: item.CleanDependencies,
				Selection: []pool.SelectionOp{{Kind: pool.SelByProvides, Dep: ps.dep}},
			})

		case ReqUpdate:
			ps, err := parseSpec(p, item.Spec)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, Job{
				Action:    JobUpdate,
				Name:      ps.name,
				Selection: []pool.SelectionOp{{Kind: pool.SelByProvides, Dep: ps.dep}},
			})

		case ReqUpdateAll:
			jobs = append(jobs, Job{Action: JobUpdateAll, CleanDeps: item.CleanDependencies, Distupgrade: flags.Has(BestObeyPolicy)})

		case ReqKeep:
			ps, err := parseSpec(p, item.Spec)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, Job{
				Action:    JobUserInstalled,
				Name:      ps.name,
				Selection: []pool.SelectionOp{{Kind: pool.SelByProvides, Dep: ps.dep}},
			})

		case ReqFreeze:
			ps, err := parseSpec(p, item.Spec)
			if err != nil {
				return nil, err
			}
			curID, ok := installed[ps.name]
			if !ok {
				return nil, errors.Wrapf(ErrInvalidSpec, "freeze %q: not currently installed", item.Spec)
			}
			jobs = append(jobs, Job{
				Action:    JobLock,
				Name:      ps.name,
				Selection: []pool.SelectionOp{{Kind: pool.SelOneOf, Set: []pool.SolvableID{curID}}},
			})

		case ReqPin:
			ps, err := parseSpec(p, item.Spec)
			if err != nil {
				return nil, err
			}
			matching, err := p.WhatProvides(ps.dep)
			if err != nil {
				return nil, err
			}
			if len(matching) == 0 {
				return nil, errors.Wrapf(ErrUnsatisfiablePin, "pin %q", item.Spec)
			}
			all, err := p.WhatProvides(p.InternDependency(ps.name, pool.RelNone, pool.NoString))
			if err != nil {
				return nil, err
			}
			matchSet := make(map[pool.SolvableID]bool, len(matching))
			for _, id := range matching {
				matchSet[id] = true
			}
			var excluded []pool.SolvableID
			for _, id := range all {
				if !matchSet[id] {
					excluded = append(excluded, id)
				}
			}
			jobs = append(jobs, Job{
				Action:       JobLock,
				Name:         ps.name,
				Selection:    []pool.SelectionOp{{Kind: pool.SelOneOf, Set: excludedAsForbidden(excluded)}},
				PinExclusion: true,
			})
		}
	}
	return jobs, nil
}

// excludedAsForbidden is a marker pass-through: the decision procedure
// interprets a JobLock whose Selection is the complement set (built here)
// as "none of these may be selected" rather than "exactly one of these
// must be selected", per spec.md §4.C's Pin translation.
func excludedAsForbidden(ids []pool.SolvableID) []pool.SolvableID { return ids }

package solver

import (
	"sort"

	"github.com/mamba-org/solvecore/internal/pool"
)

// candidateQueue orders a name's matching solvables from most- to
// least-preferred, grounded on the teacher's versionQueue (version_queue.go)
// but replacing its locked/preferred-version head with the tie-break rule
// from spec.md §4.C: newest version first, then higher build number, then
// higher timestamp, then earlier channel order, with track-features
// penalizing a candidate by one point each so a feature-free match always
// outranks one that needs a feature.
type candidateQueue struct {
	ids []pool.SolvableID
	pos int
}

func newCandidateQueue(p *pool.Pool, ids []pool.SolvableID) *candidateQueue {
	ordered := append([]pool.SolvableID(nil), ids...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return lessCandidate(p, p.Solvable(ordered[i]), p.Solvable(ordered[j]))
	})
	return &candidateQueue{ids: ordered}
}

// lessCandidate reports whether a should be tried before b.
func lessCandidate(p *pool.Pool, a, b *pool.Solvable) bool {
	if a == nil || b == nil {
		return b == nil && a != nil
	}
	if fa, fb := featureScore(a), featureScore(b); fa != fb {
		return fa > fb
	}
	if cmp := a.Version.Compare(b.Version); cmp != 0 {
		return cmp > 0
	}
	if a.BuildNumber != b.BuildNumber {
		return a.BuildNumber > b.BuildNumber
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp > b.Timestamp
	}
	ra, rb := p.Repo(a.Repo()), p.Repo(b.Repo())
	if ra != nil && rb != nil && ra.Order != rb.Order {
		return ra.Order < rb.Order
	}
	// Deterministic final tie-break by interned id, per spec.md §9's open
	// question on equal-everything candidates.
	return a.ID() < b.ID()
}

func featureScore(s *pool.Solvable) int { return -len(s.TrackFeatures) }

func (q *candidateQueue) current() (pool.SolvableID, bool) {
	if q.pos >= len(q.ids) {
		return pool.NoSolvable, false
	}
	return q.ids[q.pos], true
}

func (q *candidateQueue) advance() { q.pos++ }

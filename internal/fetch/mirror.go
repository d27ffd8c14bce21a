package fetch

import (
	"sync"
	"time"
)

// Mirror is one source for a given path, with the mutable statistics
// spec.md §4.E's mirror model requires. Ported in spirit from
// original_source/libmamba/core/mirror.hpp: AvgSpeed is an upstream extra
// (not required by spec.md) carried as a plain field rather than a
// subsystem. Nothing in this package reads it: pickMirror takes the first
// admissible mirror in list order.
type Mirror struct {
	Name string
	Base string

	mu sync.Mutex

	AllowedParallelConnections int // 0 means unbounded
	MaxTriedParallelConnections int
	RunningTransfers            int
	SuccessfulTransfers         int
	FailedTransfers             int
	NextRetryTime               time.Time
	AvgSpeedBytesPerSec         float64
}

// NewMirror constructs a Mirror with an optional parallel-connection cap
// (zero means unbounded).
func NewMirror(name, base string, allowedParallel int) *Mirror {
	return &Mirror{Name: name, Base: base, AllowedParallelConnections: allowedParallel}
}

// admit reports whether a fetch against m is currently permitted: it must
// not be inside its backoff window, and must have spare connection budget
// when a cap is set. On acceptance it increments RunningTransfers and bumps
// MaxTriedParallelConnections, per spec.md §4.E's admission rule.
func (m *Mirror) admit(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.NextRetryTime.IsZero() && now.Before(m.NextRetryTime) {
		return false
	}
	if m.AllowedParallelConnections > 0 && m.RunningTransfers >= m.AllowedParallelConnections {
		return false
	}
	m.RunningTransfers++
	if m.RunningTransfers > m.MaxTriedParallelConnections {
		m.MaxTriedParallelConnections = m.RunningTransfers
	}
	return true
}

// recordOutcome finalizes one admitted transfer: RunningTransfers is
// decremented, the success/failure counter bumped, and on failure the
// mirror sheds load by capping its allowed connections to the current
// running count and scheduling NextRetryTime via exponential backoff, per
// spec.md §4.E.
func (m *Mirror) recordOutcome(success bool, backoffBase time.Duration, backoffFactor float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RunningTransfers > 0 {
		m.RunningTransfers--
	}
	if success {
		m.SuccessfulTransfers++
		return
	}
	m.FailedTransfers++
	if m.RunningTransfers > 0 {
		m.AllowedParallelConnections = m.RunningTransfers
	}
	mult := 1.0
	for i := 0; i < m.FailedTransfers-1; i++ {
		mult *= backoffFactor
	}
	m.NextRetryTime = time.Now().Add(time.Duration(float64(backoffBase) * mult))
}

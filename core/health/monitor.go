// Package health tracks remote-call outcomes and derives an advisory
// process health signal. The unhealthy flag does not trigger a restart by
// itself; a surrounding supervisor may consume it.
package health

import (
	"sync"
	"time"
)

const defaultFailureThreshold = 10

// Snapshot is a derived, point-in-time view of the monitor counters.
type Snapshot struct {
	Healthy             bool
	Uptime              time.Duration
	SuccessCount        uint64
	FailureCount        uint64
	ConsecutiveFailures int
	TotalRequests       uint64
	SuccessRate         float64
}

// Monitor is a passive observer fed success/failure events by the call
// executor. Safe for concurrent use.
type Monitor struct {
	mu                  sync.Mutex
	startTime           time.Time
	successCount        uint64
	failureCount        uint64
	consecutiveFailures int
	threshold           int
	healthy             bool

	now func() time.Time
}

// NewMonitor constructs a Monitor with the given consecutive-failure
// threshold; threshold <= 0 selects the default of 10.
func NewMonitor(threshold int) *Monitor {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	m := &Monitor{
		threshold: threshold,
		healthy:   true,
		now:       time.Now,
	}
	m.startTime = m.now()
	return m
}

// RecordSuccess registers a successful remote call and resets the
// consecutive-failure streak.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successCount++
	m.consecutiveFailures = 0
	m.healthy = true
}

// RecordFailure registers a failed remote call. Crossing the threshold
// flips the monitor to unhealthy until the next success.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCount++
	m.consecutiveFailures++
	if m.consecutiveFailures >= m.threshold {
		m.healthy = false
	}
}

// Healthy reports the advisory health flag.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// Snapshot returns the derived health view. Pure read, no side effects.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.successCount + m.failureCount
	rate := 100.0
	if total > 0 {
		rate = float64(m.successCount) / float64(total) * 100
	}
	return Snapshot{
		Healthy:             m.healthy,
		Uptime:              m.now().Sub(m.startTime),
		SuccessCount:        m.successCount,
		FailureCount:        m.failureCount,
		ConsecutiveFailures: m.consecutiveFailures,
		TotalRequests:       total,
		SuccessRate:         rate,
	}
}

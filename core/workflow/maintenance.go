package workflow

import (
	"context"
	"log/slog"
	"time"

	"quizbot/core/health"
	"quizbot/core/logger"
	"quizbot/core/session"
)

const defaultMaintenanceInterval = 30 * time.Second

// Maintenance periodically evicts stale sessions and surfaces health
// degradation in the logs. It owns no state of its own and stops when its
// context is cancelled.
type Maintenance struct {
	sessions *session.Store
	monitor  *health.Monitor
	interval time.Duration

	lastHealthy bool
}

// NewMaintenance builds the loop. A non-positive interval falls back to the
// default.
func NewMaintenance(sessions *session.Store, monitor *health.Monitor, interval time.Duration) *Maintenance {
	if interval <= 0 {
		interval = defaultMaintenanceInterval
	}
	return &Maintenance{
		sessions:    sessions,
		monitor:     monitor,
		interval:    interval,
		lastHealthy: true,
	}
}

// Run blocks until ctx is cancelled, ticking at the configured interval.
func (m *Maintenance) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	logger.Info(ctx, "maintenance", "loop.start",
		slog.Duration("interval", m.interval),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "maintenance", "loop.stop")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Maintenance) tick(ctx context.Context) {
	before := m.sessions.Len()
	m.sessions.Evict()
	after := m.sessions.Len()
	if after < before {
		logger.Info(ctx, "maintenance", "sessions.evicted",
			slog.Int("removed", before-after),
			slog.Int("remaining", after),
		)
	}

	if m.monitor == nil {
		return
	}
	snap := m.monitor.Snapshot()
	if snap.Healthy != m.lastHealthy {
		if snap.Healthy {
			logger.Info(ctx, "maintenance", "health.recovered",
				slog.Uint64("success", snap.SuccessCount),
				slog.Uint64("failure", snap.FailureCount),
			)
		} else {
			logger.Warn(ctx, "maintenance", "health.degraded",
				slog.Int("consecutive_failures", snap.ConsecutiveFailures),
				slog.Uint64("failure", snap.FailureCount),
			)
		}
		m.lastHealthy = snap.Healthy
	}
}

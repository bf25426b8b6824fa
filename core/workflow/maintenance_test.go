package workflow

import (
	"context"
	"testing"
	"time"

	"quizbot/core/health"
	"quizbot/core/session"
)

func TestMaintenanceTickKeepsFreshSessions(t *testing.T) {
	store := session.NewStore(session.Options{MaxUsers: 50, TTL: time.Minute})
	for i := int64(1); i <= 3; i++ {
		store.Touch(i)
	}

	m := NewMaintenance(store, nil, time.Minute)
	m.tick(context.Background())

	if got := store.Len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
}

func TestMaintenanceTracksHealthTransitions(t *testing.T) {
	mon := health.NewMonitor(2)
	m := NewMaintenance(session.NewStore(session.Options{}), mon, time.Minute)

	mon.RecordFailure()
	mon.RecordFailure()
	m.tick(context.Background())
	if m.lastHealthy {
		t.Fatal("degradation not observed")
	}

	mon.RecordSuccess()
	m.tick(context.Background())
	if !m.lastHealthy {
		t.Fatal("recovery not observed")
	}
}

func TestMaintenanceRunStopsOnCancel(t *testing.T) {
	store := session.NewStore(session.Options{})
	m := NewMaintenance(store, health.NewMonitor(0), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("maintenance loop did not stop on cancel")
	}
}

func TestMaintenanceDefaultsInterval(t *testing.T) {
	m := NewMaintenance(session.NewStore(session.Options{}), nil, 0)
	if m.interval != defaultMaintenanceInterval {
		t.Fatalf("interval = %v, want default", m.interval)
	}
}

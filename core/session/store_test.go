package session

import (
	"testing"
	"time"
)

func newTestStore(maxUsers int, ttl time.Duration) (*Store, *time.Time) {
	s := NewStore(Options{MaxUsers: maxUsers, TTL: ttl})
	clock := time.Unix(1_000_000, 0)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestTouchCreatesIdleSession(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)
	s.Touch(42)

	sess, ok := s.Get(42)
	if !ok {
		t.Fatal("expected session after touch")
	}
	if sess.State != StateIdle {
		t.Fatalf("state = %q, expected idle", sess.State)
	}
	if !sess.Anonymous {
		t.Fatal("default anonymous preference should be true")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)
	s.Touch(1)

	sess, _ := s.Get(1)
	sess.State = StateWaitingForJSON

	again, _ := s.Get(1)
	if again.State != StateIdle {
		t.Fatal("mutating the returned session must not affect the store")
	}
}

func TestEvictRemovesExpiredSessions(t *testing.T) {
	s, clock := newTestStore(100, 30*time.Minute)
	s.Touch(1)
	s.Touch(2)

	*clock = clock.Add(31 * time.Minute)
	s.Touch(3)
	s.Evict()

	if _, ok := s.Get(1); ok {
		t.Fatal("session 1 should be TTL-evicted")
	}
	if _, ok := s.Get(2); ok {
		t.Fatal("session 2 should be TTL-evicted")
	}
	if _, ok := s.Get(3); !ok {
		t.Fatal("fresh session 3 should survive")
	}
}

func TestCapacityEvictionKeepsMostRecent(t *testing.T) {
	s, clock := newTestStore(10, time.Hour)
	for i := int64(1); i <= 25; i++ {
		s.Touch(i)
		*clock = clock.Add(time.Second)
	}

	if got := s.Len(); got > 10 {
		t.Fatalf("store size = %d, expected <= maxUsers", got)
	}
	for i := int64(21); i <= 25; i++ {
		if _, ok := s.Get(i); !ok {
			t.Fatalf("most recent session %d should be retained", i)
		}
	}
	if _, ok := s.Get(1); ok {
		t.Fatal("oldest session should be evicted")
	}
}

func TestEvictOverCapacityKeepsHalfLimit(t *testing.T) {
	s, clock := newTestStore(10, time.Hour)
	// Set does not trigger opportunistic eviction, so the map overfills.
	for i := int64(1); i <= 20; i++ {
		s.Set(i, Session{State: StateIdle})
		*clock = clock.Add(time.Second)
	}

	s.Evict()

	// The pass over-corrects to half the limit to avoid evicting again on
	// every subsequent insert.
	if got := s.Len(); got != 5 {
		t.Fatalf("store size = %d, expected 5", got)
	}
	for i := int64(16); i <= 20; i++ {
		if _, ok := s.Get(i); !ok {
			t.Fatalf("most recent session %d should be retained", i)
		}
	}
}

func TestSetPersistsState(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)
	s.Touch(7)

	sess, _ := s.Get(7)
	sess.State = StateWaitingForJSON
	sess.Anonymous = false
	s.Set(7, sess)

	got, _ := s.Get(7)
	if got.State != StateWaitingForJSON || got.Anonymous {
		t.Fatalf("session = %+v", got)
	}
	if got.UserID != 7 {
		t.Fatalf("user id = %d", got.UserID)
	}
}

func TestEvictNoopUnderLimit(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)
	for i := int64(1); i <= 5; i++ {
		s.Touch(i)
	}
	s.Evict()
	if got := s.Len(); got != 5 {
		t.Fatalf("store size = %d, expected 5", got)
	}
}

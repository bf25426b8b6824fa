package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"quizbot/core/logger"
)

const (
	defaultMaxUsers = 200
	defaultTTL      = 30 * time.Minute
)

// Options bound the store. Zero values select defaults.
type Options struct {
	MaxUsers int
	TTL      time.Duration
}

// Store is a mutex-guarded map of user id to session. Both the event
// handling path and the maintenance loop mutate it, so every operation
// takes the lock.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	maxUsers int
	ttl      time.Duration

	now func() time.Time
}

// NewStore constructs a bounded session store.
func NewStore(opts Options) *Store {
	if opts.MaxUsers <= 0 {
		opts.MaxUsers = defaultMaxUsers
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	return &Store{
		sessions: make(map[int64]*Session),
		maxUsers: opts.MaxUsers,
		ttl:      opts.TTL,
		now:      time.Now,
	}
}

// Touch creates the session if absent (default state idle), refreshes its
// last-activity timestamp, and opportunistically evicts when over capacity.
func (s *Store) Touch(userID int64) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{UserID: userID, State: StateIdle, Anonymous: true}
		s.sessions[userID] = sess
	}
	sess.LastActivity = s.now()
	over := len(s.sessions) > s.maxUsers
	s.mu.Unlock()

	if over {
		s.Evict()
	}
}

// Get returns a copy of the session for a user, if present. Callers mutate
// the copy and persist it back via Set, never a shared pointer.
func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return *sess, true
	}
	return Session{}, false
}

// Set stores the session for a user, stamping last activity.
func (s *Store) Set(userID int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.UserID = userID
	sess.LastActivity = s.now()
	s.sessions[userID] = &sess
}

// Len reports the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict removes expired sessions and, if the store is still over capacity,
// keeps only the most recently active half of the limit. A fault inside
// eviction clears the store entirely: fail safe to empty, never fail open
// to unbounded growth.
func (s *Store) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.sessions = make(map[int64]*Session)
			logger.Warn(context.Background(), "session", "evict.fail_safe",
				slog.Any("err", r),
			)
		}
	}()

	now := s.now()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}

	if len(s.sessions) > s.maxUsers {
		sessions := make([]*Session, 0, len(s.sessions))
		for _, sess := range s.sessions {
			sessions = append(sessions, sess)
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].LastActivity.After(sessions[j].LastActivity)
		})
		// Keep half the limit so the very next insert does not trigger
		// another full eviction pass.
		keep := s.maxUsers / 2
		for _, sess := range sessions[keep:] {
			delete(s.sessions, sess.UserID)
			removed++
		}
	}

	if removed > 0 {
		logger.Debug(context.Background(), "session", "evict.done",
			slog.Int("removed", removed),
			slog.Int("remaining", len(s.sessions)),
		)
	}
}

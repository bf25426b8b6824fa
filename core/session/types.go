// Package session provides a bounded in-memory store of per-user
// conversation state. Entries expire by TTL and by capacity pressure; the
// store never persists anything across restarts.
package session

import "time"

// State identifies a conversation step for a user.
type State string

const (
	// StateIdle indicates no active conversation with the user.
	StateIdle State = "idle"
	// StateChoosingType means the user must pick anonymous or non-anonymous.
	StateChoosingType State = "choosing_type"
	// StateWaitingForJSON means the preference is captured and the bot
	// awaits the quiz payload.
	StateWaitingForJSON State = "waiting_for_json"
)

// Session stores conversation state for a single user.
type Session struct {
	UserID       int64
	State        State
	Anonymous    bool
	LastActivity time.Time
}

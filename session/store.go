package session

import (
	"context"
	"errors"
)

// Role tags a message in a call's conversation history.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one role-tagged message. The ordered slice of turns is the literal
// context window sent to the model, so insertion order matters.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ErrConflict is returned when a concurrent writer kept winning the race for
// the same call and the store gave up retrying.
var ErrConflict = errors.New("session: concurrent update conflict")

// Store holds per-call conversation state keyed by call identifier.
//
// Implementations guard each call id independently: writers on different
// calls never block each other, and Append/Replace are atomic per call.
type Store interface {
	// Get returns a copy of the call's turns, creating an empty session on
	// miss. created reports whether this lookup created it.
	Get(ctx context.Context, callID string) (turns []Turn, created bool, err error)

	// Append adds turns in order as one atomic write, then trims the
	// history to the store's bound.
	Append(ctx context.Context, callID string, turns ...Turn) error

	// Replace swaps the call's whole history.
	Replace(ctx context.Context, callID string, turns []Turn) error

	// Clear deletes the call's session. Clearing an absent id is not an error.
	Clear(ctx context.Context, callID string) error

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
}

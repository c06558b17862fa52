package models

import "time"

// SessionStatus represents the lifecycle of a play session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// Session is a dated batch of rounds of matches. Sessions are ordered
// relative to each other strictly by CreatedAt, never by id.
type Session struct {
	ID          int           `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Status      SessionStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty" db:"completed_at"`

	Matches []Match `json:"matches,omitempty" db:"-"`
}

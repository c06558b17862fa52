package models

import "time"

// RecalculationStatus is the state of a session's recalculation lock.
// Transitions: idle|done|failed -> running -> done|failed, with running
// acquired only through a conditional update on the store.
type RecalculationStatus string

const (
	RecalculationStatusIdle    RecalculationStatus = "idle"
	RecalculationStatusRunning RecalculationStatus = "running"
	RecalculationStatusDone    RecalculationStatus = "done"
	RecalculationStatusFailed  RecalculationStatus = "failed"
)

// RecalculationLock is the per-session mutex guarding edit recalculations.
// Token identifies the attempt that holds the lock, so a finished attempt can
// only release its own acquisition.
type RecalculationLock struct {
	SessionID int                 `json:"session_id" db:"session_id"`
	Status    RecalculationStatus `json:"status" db:"status"`
	Token     string              `json:"-" db:"token"`
	StartedAt time.Time           `json:"started_at" db:"started_at"`
	UpdatedAt time.Time           `json:"updated_at" db:"updated_at"`
}

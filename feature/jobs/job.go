package jobs

import (
	"time"

	"booksync/core/errs"
)

// State is the lifecycle phase of a job. Jobs move PENDING -> RUNNING
// and then to exactly one terminal state.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether a job in this state can still change.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Job is a point-in-time snapshot of one tracked operation. The monitor
// hands out copies, so mutating a Job has no effect on the tracked one.
type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	State     State     `json:"state"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorCode errs.Code `json:"errorCode,omitempty"`
	Retryable bool      `json:"retryable"`
	RetryOf   string    `json:"retryOf,omitempty"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"createdAt"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
}

// canTransition encodes the legal state machine edges.
func canTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateCancelled
	case StateRunning:
		return to.Terminal()
	default:
		return false
	}
}

package game

import "errors"

// SessionState represents the current state of a match session
type SessionState string

const (
	StateAwaitingChoices SessionState = "AWAITING_CHOICES"
	StateResolved        SessionState = "RESOLVED"
	StateExpired         SessionState = "EXPIRED"
)

func (s SessionState) Terminal() bool {
	return s == StateResolved || s == StateExpired
}

var (
	ErrAlreadyActive   = errors.New("account already queued or in a match")
	ErrNotQueued       = errors.New("account is not waiting in the queue")
	ErrSessionNotFound = errors.New("match session not found")
	ErrStaleSubmission = errors.New("match session already finished")
	ErrNotParticipant  = errors.New("account is not a player in this match")
	ErrInvalidChoice   = errors.New("invalid choice")
	ErrShuttingDown    = errors.New("matchmaking is shutting down")
)

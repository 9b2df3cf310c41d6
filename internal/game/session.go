package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Session is one rock-paper-scissors match between two distinct accounts.
// All mutation goes through submit and expire, serialized by mu.
type Session struct {
	ID        string
	Player1   string
	Player2   string
	CreatedAt time.Time
	Deadline  time.Time

	mu      sync.Mutex
	choice1 Choice
	choice2 Choice
	state   SessionState
	timer   clockwork.Timer
	entries [2]string // queue entries whose stakes fund the session
}

// SessionView is an immutable copy of a session
type SessionView struct {
	ID        string       `json:"id"`
	Player1   string       `json:"player1_id"`
	Player2   string       `json:"player2_id"`
	Choice1   Choice       `json:"choice1,omitempty"`
	Choice2   Choice       `json:"choice2,omitempty"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	Deadline  time.Time    `json:"deadline"`
}

func newSession(id, player1, player2 string, now time.Time, window time.Duration) *Session {
	return &Session{
		ID:        id,
		Player1:   player1,
		Player2:   player2,
		CreatedAt: now,
		Deadline:  now.Add(window),
		state:     StateAwaitingChoices,
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		ID:        s.ID,
		Player1:   s.Player1,
		Player2:   s.Player2,
		Choice1:   s.choice1,
		Choice2:   s.choice2,
		State:     s.state,
		CreatedAt: s.CreatedAt,
		Deadline:  s.Deadline,
	}
}

// submit records a move. It returns true when this move completed the
// session, in which case the session is already Resolved and the timer stopped.
func (s *Session) submit(accountID string, c Choice) (bool, error) {
	if !c.Valid() {
		return false, ErrInvalidChoice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingChoices {
		return false, ErrStaleSubmission
	}

	var slot *Choice
	switch accountID {
	case s.Player1:
		slot = &s.choice1
	case s.Player2:
		slot = &s.choice2
	default:
		return false, ErrNotParticipant
	}
	if *slot != "" {
		return false, ErrAlreadyActive
	}
	*slot = c

	if s.choice1 == "" || s.choice2 == "" {
		return false, nil
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.state = StateResolved
	return true, nil
}

// expire ends an undecided session. A timer that fires after the session
// resolved gets false and must do nothing.
func (s *Session) expire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingChoices {
		return false
	}
	s.state = StateExpired
	return true
}

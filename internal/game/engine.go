package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rpsarena/backend/internal/ledger"
	"github.com/rpsarena/backend/internal/models"
)

// ErrInsufficientFunds is returned by Join when the entry fee cannot be paid
var ErrInsufficientFunds = ledger.ErrInsufficientFunds

// Engine owns the waiting queue and the registry of live sessions
type Engine struct {
	ledger   ledger.Store
	journal  Journal
	notifier Notifier
	clock    clockwork.Clock
	econ     Economics

	mu       sync.Mutex
	queue    []*waitingEntry          // FIFO, oldest first
	waiting  map[string]*waitingEntry // account ID -> entry
	joining  map[string]struct{}      // accounts whose stake debit is in flight
	sessions map[string]*Session      // session ID -> session
	players  map[string]string        // account ID -> session ID
	live     map[string]struct{}      // entry IDs whose stake this engine still owns
	closed   bool
	inflight sync.WaitGroup
}

type waitingEntry struct {
	ID         string
	AccountID  string
	Fee        int64
	EnqueuedAt time.Time
	timer      clockwork.Timer
}

// JoinResult tells the caller whether it was paired right away
type JoinResult struct {
	EntryID   string `json:"entry_id"`
	SessionID string `json:"session_id,omitempty"`
	Position  int    `json:"position,omitempty"`
}

// PlayerStatus is where an account currently sits in the engine
type PlayerStatus struct {
	Queued     bool         `json:"queued"`
	Position   int          `json:"position,omitempty"`
	EnqueuedAt *time.Time   `json:"enqueued_at,omitempty"`
	Session    *SessionView `json:"session,omitempty"`
}

type Stats struct {
	Waiting  int `json:"waiting"`
	Sessions int `json:"sessions"`
}

// NewEngine wires an engine. A nil journal, notifier or clock falls back to
// the in-memory journal, no notifications and the wall clock.
func NewEngine(store ledger.Store, journal Journal, notifier Notifier, clock clockwork.Clock, econ Economics) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if journal == nil {
		journal = NewMemoryJournal().WithClock(clock)
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		ledger:   store,
		journal:  journal,
		notifier: notifier,
		clock:    clock,
		econ:     econ,
		waiting:  make(map[string]*waitingEntry),
		joining:  make(map[string]struct{}),
		sessions: make(map[string]*Session),
		players:  make(map[string]string),
		live:     make(map[string]struct{}),
	}
}

func (e *Engine) Economics() Economics {
	return e.econ
}

func (e *Engine) activeLocked(accountID string) bool {
	if _, ok := e.waiting[accountID]; ok {
		return true
	}
	if _, ok := e.joining[accountID]; ok {
		return true
	}
	_, ok := e.players[accountID]
	return ok
}

// Join debits the entry fee and queues the account. When another account is
// already waiting the two oldest entries are paired into a new session.
func (e *Engine) Join(ctx context.Context, accountID string) (*JoinResult, error) {
	if accountID == "" || accountID == ledger.HouseAccount {
		return nil, ledger.ErrInvalidAccount
	}

	entryID := "q_" + uuid.NewString()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if e.activeLocked(accountID) {
		e.mu.Unlock()
		return nil, ErrAlreadyActive
	}
	e.joining[accountID] = struct{}{}
	e.live[entryID] = struct{}{}
	e.mu.Unlock()

	_, err := e.ledger.Debit(ctx, accountID, e.econ.EntryFee, ledger.Ref{
		Type:        ledger.EntryStake,
		Key:         "stake:" + entryID,
		Reference:   entryID,
		Description: "Match entry fee",
	})
	if err != nil {
		e.mu.Lock()
		delete(e.joining, accountID)
		delete(e.live, entryID)
		e.mu.Unlock()
		return nil, err
	}

	entry := &waitingEntry{ID: entryID, AccountID: accountID, Fee: e.econ.EntryFee, EnqueuedAt: e.clock.Now()}

	err = e.journal.Hold(ctx, models.StakeHold{
		EntryID:   entryID,
		AccountID: accountID,
		Amount:    entry.Fee,
		CreatedAt: entry.EnqueuedAt,
	})
	if err != nil {
		log.Printf("[QUEUE] Failed to hold stake of entry %s, returning it: %v", entryID, err)
		e.mu.Lock()
		delete(e.joining, accountID)
		e.mu.Unlock()
		if rerr := e.refund(context.WithoutCancel(ctx), entry, false); rerr != nil {
			log.Printf("[QUEUE] Refund of unheld entry %s failed: %v", entryID, rerr)
		}
		return nil, fmt.Errorf("hold stake: %w", err)
	}

	e.mu.Lock()
	delete(e.joining, accountID)
	if e.closed {
		e.mu.Unlock()
		e.refund(context.WithoutCancel(ctx), entry, false)
		return nil, ErrShuttingDown
	}
	e.queue = append(e.queue, entry)
	e.waiting[accountID] = entry

	var s *Session
	if len(e.queue) >= 2 {
		s = e.pairLocked()
	} else {
		entry.timer = e.clock.AfterFunc(e.econ.WaitWindow, func() { e.expireWaiting(entry) })
	}
	res := &JoinResult{EntryID: entryID}
	if s != nil {
		res.SessionID = s.ID
	} else {
		res.Position = len(e.queue)
	}
	e.mu.Unlock()

	if s == nil {
		log.Printf("[QUEUE] %s waiting (entry %s, position %d)", accountID, entryID, res.Position)
		return res, nil
	}
	e.announce(context.WithoutCancel(ctx), s)
	return res, nil
}

// pairLocked removes the two oldest entries and opens their session
func (e *Engine) pairLocked() *Session {
	a, b := e.queue[0], e.queue[1]
	e.queue = e.queue[2:]
	for _, w := range []*waitingEntry{a, b} {
		delete(e.waiting, w.AccountID)
		if w.timer != nil {
			w.timer.Stop()
		}
	}

	s := newSession("m_"+uuid.NewString(), a.AccountID, b.AccountID, e.clock.Now(), e.econ.ChoiceWindow)
	s.entries = [2]string{a.ID, b.ID}
	s.timer = e.clock.AfterFunc(e.econ.ChoiceWindow, func() { e.expireSession(s) })
	e.sessions[s.ID] = s
	e.players[s.Player1] = s.ID
	e.players[s.Player2] = s.ID
	e.inflight.Add(1)

	log.Printf("[MATCH] Paired %s vs %s in session %s (entries %s, %s)", s.Player1, s.Player2, s.ID, a.ID, b.ID)
	return s
}

func (e *Engine) announce(ctx context.Context, s *Session) {
	if err := e.notifier.NotifyMatchFound(ctx, s.ID, s.Player1, s.Player2); err != nil {
		log.Printf("[MATCH] Failed to notify match found for %s: %v", s.ID, err)
	}
	for _, p := range []string{s.Player1, s.Player2} {
		if err := e.notifier.NotifyChoicePrompt(ctx, s.ID, p, s.Deadline); err != nil {
			log.Printf("[MATCH] Failed to prompt %s in %s: %v", p, s.ID, err)
		}
	}
}

func (e *Engine) removeWaitingLocked(entry *waitingEntry) {
	delete(e.waiting, entry.AccountID)
	for i, w := range e.queue {
		if w == entry {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			break
		}
	}
}

// expireWaiting runs from the wait timer. An entry that was paired or left
// in the meantime is no longer in the waiting map and nothing happens.
func (e *Engine) expireWaiting(entry *waitingEntry) {
	e.mu.Lock()
	if e.waiting[entry.AccountID] != entry {
		e.mu.Unlock()
		return
	}
	e.removeWaitingLocked(entry)
	e.mu.Unlock()

	log.Printf("[QUEUE] No opponent for %s within %v, refunding entry %s", entry.AccountID, e.econ.WaitWindow, entry.ID)
	e.refund(context.Background(), entry, true)
}

// Leave cancels a waiting entry and returns the refunded fee
func (e *Engine) Leave(ctx context.Context, accountID string) (int64, error) {
	e.mu.Lock()
	entry, ok := e.waiting[accountID]
	if !ok {
		e.mu.Unlock()
		return 0, ErrNotQueued
	}
	e.removeWaitingLocked(entry)
	if entry.timer != nil {
		entry.timer.Stop()
	}
	e.mu.Unlock()

	log.Printf("[QUEUE] %s left the queue (entry %s)", accountID, entry.ID)
	if err := e.refund(context.WithoutCancel(ctx), entry, false); err != nil {
		return 0, err
	}
	return entry.Fee, nil
}

// refund returns the stake of an entry that never reached a session. The
// intent is journaled with the hold closure so a failed credit is picked up
// by recovery. The credit key is per entry, so refunding twice pays once.
func (e *Engine) refund(ctx context.Context, entry *waitingEntry, notify bool) error {
	in := models.SettlementIntent{
		Key:       "refund:" + entry.ID,
		Reference: entry.ID,
		AccountID: entry.AccountID,
		EntryType: ledger.EntryQueueRefund,
		Amount:    entry.Fee,
		CreatedAt: e.clock.Now(),
	}
	if err := e.journal.Close(ctx, []string{entry.ID}, []models.SettlementIntent{in}); err != nil {
		log.Printf("[QUEUE] Failed to record refund intent for %s: %v", entry.ID, err)
	}
	e.mu.Lock()
	delete(e.live, entry.ID)
	e.mu.Unlock()

	if _, err := e.applyIntents(ctx, []models.SettlementIntent{in}); err != nil {
		return err
	}
	if notify {
		if err := e.notifier.NotifyQueueTimeout(ctx, entry.AccountID, entry.Fee); err != nil {
			log.Printf("[QUEUE] Failed to notify queue timeout to %s: %v", entry.AccountID, err)
		}
	}
	return nil
}

// SubmitChoice records a player's move. The move that completes the session
// settles it before returning.
func (e *Engine) SubmitChoice(ctx context.Context, accountID, sessionID string, choice Choice) error {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	e.mu.Unlock()
	if !ok {
		log.Printf("[MATCH] Choice from %s for unknown session %s ignored", accountID, sessionID)
		return ErrSessionNotFound
	}

	done, err := s.submit(accountID, choice)
	if err != nil {
		if errors.Is(err, ErrStaleSubmission) {
			log.Printf("[MATCH] Late choice from %s for session %s ignored", accountID, sessionID)
		}
		return err
	}
	log.Printf("[MATCH] %s chose in session %s", accountID, sessionID)
	if done {
		e.finish(context.WithoutCancel(ctx), s)
		e.inflight.Done()
	}
	return nil
}

// expireSession runs from the choice timer and loses to a completed submit
func (e *Engine) expireSession(s *Session) {
	if !s.expire() {
		return
	}
	log.Printf("[MATCH] Session %s timed out", s.ID)
	e.finish(context.Background(), s)
	e.inflight.Done()
}

// Status reports whether the account is queued or playing
func (e *Engine) Status(accountID string) PlayerStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	var st PlayerStatus
	if entry, ok := e.waiting[accountID]; ok {
		st.Queued = true
		at := entry.EnqueuedAt
		st.EnqueuedAt = &at
		for i, w := range e.queue {
			if w == entry {
				st.Position = i + 1
				break
			}
		}
	}
	if id, ok := e.players[accountID]; ok {
		if s, ok := e.sessions[id]; ok {
			v := s.Snapshot()
			st.Session = &v
		}
	}
	return st
}

// Session returns a copy of a live session
func (e *Engine) Session(id string) (SessionView, bool) {
	e.mu.Lock()
	s, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return SessionView{}, false
	}
	return s.Snapshot(), true
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{Waiting: len(e.queue), Sessions: len(e.sessions)}
}

// Shutdown stops accepting joins, refunds everyone still waiting and waits
// for live sessions to settle or for ctx to end.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	pending := e.queue
	e.queue = nil
	for _, w := range pending {
		delete(e.waiting, w.AccountID)
		if w.timer != nil {
			w.timer.Stop()
		}
	}
	e.mu.Unlock()

	for _, w := range pending {
		log.Printf("[QUEUE] Shutdown refund for %s (entry %s)", w.AccountID, w.ID)
		if err := e.refund(ctx, w, true); err != nil {
			log.Printf("[QUEUE] Shutdown refund for %s failed, left for recovery: %v", w.ID, err)
		}
	}

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

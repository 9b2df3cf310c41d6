package game

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rpsarena/backend/internal/models"
)

// Journal records the intent to pay before any credit is issued, so a crash
// between the terminal transition and the ledger write can be replayed. It
// also holds every debited stake until a refund or settlement for it is
// recorded, so a stake whose entry or session was lost can be returned.
type Journal interface {
	// Record stores intents; keys already present are left untouched.
	Record(ctx context.Context, intents []models.SettlementIntent) error
	MarkApplied(ctx context.Context, key string) error
	Pending(ctx context.Context, limit int) ([]models.SettlementIntent, error)
	ForReference(ctx context.Context, reference string) ([]models.SettlementIntent, error)
	SaveMatch(ctx context.Context, rec models.MatchRecord) error

	// Hold opens a stake hold after the entry fee was debited.
	Hold(ctx context.Context, hold models.StakeHold) error
	// Close records intents and closes the holds of entryIDs in one write.
	Close(ctx context.Context, entryIDs []string, intents []models.SettlementIntent) error
	OpenHolds(ctx context.Context, limit int) ([]models.StakeHold, error)
}

// MemoryJournal is the in-process Journal used with the memory ledger and in tests
type MemoryJournal struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	order     []string
	intents   map[string]*models.SettlementIntent
	matches   map[string]models.MatchRecord
	holdOrder []string
	holds     map[string]*models.StakeHold
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		clock:   clockwork.NewRealClock(),
		intents: make(map[string]*models.SettlementIntent),
		matches: make(map[string]models.MatchRecord),
		holds:   make(map[string]*models.StakeHold),
	}
}

// WithClock stamps journal rows with clock instead of the wall clock
func (j *MemoryJournal) WithClock(clock clockwork.Clock) *MemoryJournal {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.clock = clock
	return j
}

func (j *MemoryJournal) Record(ctx context.Context, intents []models.SettlementIntent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recordLocked(intents)
	return nil
}

func (j *MemoryJournal) recordLocked(intents []models.SettlementIntent) {
	for _, in := range intents {
		if _, exists := j.intents[in.Key]; exists {
			continue
		}
		cp := in
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = j.clock.Now()
		}
		j.intents[in.Key] = &cp
		j.order = append(j.order, in.Key)
	}
}

func (j *MemoryJournal) MarkApplied(ctx context.Context, key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if in, ok := j.intents[key]; ok && !in.Applied {
		in.Applied = true
		in.AppliedAt = sql.NullTime{Time: j.clock.Now(), Valid: true}
	}
	return nil
}

func (j *MemoryJournal) Pending(ctx context.Context, limit int) ([]models.SettlementIntent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.SettlementIntent
	for _, key := range j.order {
		if in := j.intents[key]; !in.Applied {
			out = append(out, *in)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (j *MemoryJournal) ForReference(ctx context.Context, reference string) ([]models.SettlementIntent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.SettlementIntent
	for _, key := range j.order {
		if in := j.intents[key]; in.Reference == reference {
			out = append(out, *in)
		}
	}
	return out, nil
}

func (j *MemoryJournal) SaveMatch(ctx context.Context, rec models.MatchRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.matches[rec.ID] = rec
	return nil
}

// Match returns a saved match record
func (j *MemoryJournal) Match(id string) (models.MatchRecord, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.matches[id]
	return rec, ok
}

func (j *MemoryJournal) Hold(ctx context.Context, hold models.StakeHold) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.holds[hold.EntryID]; exists {
		return nil
	}
	if hold.CreatedAt.IsZero() {
		hold.CreatedAt = j.clock.Now()
	}
	j.holds[hold.EntryID] = &hold
	j.holdOrder = append(j.holdOrder, hold.EntryID)
	return nil
}

func (j *MemoryJournal) Close(ctx context.Context, entryIDs []string, intents []models.SettlementIntent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recordLocked(intents)
	now := j.clock.Now()
	for _, id := range entryIDs {
		if h, ok := j.holds[id]; ok && !h.ClosedAt.Valid {
			h.ClosedAt = sql.NullTime{Time: now, Valid: true}
		}
	}
	return nil
}

func (j *MemoryJournal) OpenHolds(ctx context.Context, limit int) ([]models.StakeHold, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.StakeHold
	for _, id := range j.holdOrder {
		if h := j.holds[id]; !h.ClosedAt.Valid {
			out = append(out, *h)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

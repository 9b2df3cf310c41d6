package ledger

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpsarena/backend/internal/models"
)

type memAccount struct {
	mu      sync.Mutex
	acct    models.Account
	keys    map[string]struct{}
	entries []models.LedgerEntry
}

// MemoryStore keeps balances in process. Each account carries its own mutex so
// concurrent operations on different accounts run in parallel.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*memAccount
	nextID   atomic.Int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*memAccount),
		now:      time.Now,
	}
}

// account returns the account record, creating it on first use
func (s *MemoryStore) account(id string) *memAccount {
	s.mu.RLock()
	a, ok := s.accounts[id]
	s.mu.RUnlock()
	if ok {
		return a
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return a
	}
	now := s.now()
	a = &memAccount{
		acct: models.Account{ID: id, CreatedAt: now, UpdatedAt: now},
		keys: make(map[string]struct{}),
	}
	s.accounts[id] = a
	return a
}

func (s *MemoryStore) apply(accountID string, delta int64, ref Ref) (int64, error) {
	a := s.account(accountID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if ref.Key != "" {
		if _, seen := a.keys[ref.Key]; seen {
			return a.acct.Balance, ErrDuplicateEntry
		}
	}
	newBalance := a.acct.Balance + delta
	if newBalance < 0 {
		return a.acct.Balance, ErrInsufficientFunds
	}

	now := s.now()
	a.acct.Balance = newBalance
	a.acct.UpdatedAt = now
	if ref.Key != "" {
		a.keys[ref.Key] = struct{}{}
	}
	a.entries = append(a.entries, models.LedgerEntry{
		ID:             s.nextID.Add(1),
		AccountID:      accountID,
		EntryType:      ref.Type,
		Amount:         delta,
		BalanceAfter:   newBalance,
		IdempotencyKey: sql.NullString{String: ref.Key, Valid: ref.Key != ""},
		Reference:      ref.Reference,
		Description:    ref.Description,
		CreatedAt:      now,
	})

	log.Printf("[LEDGER] %s account=%s delta=%d balance=%d ref=%s", ref.Type, accountID, delta, newBalance, ref.Reference)
	return newBalance, nil
}

func (s *MemoryStore) Debit(ctx context.Context, accountID string, amount int64, ref Ref) (int64, error) {
	if err := validate(accountID, amount); err != nil {
		return 0, err
	}
	return s.apply(accountID, -amount, ref)
}

func (s *MemoryStore) Credit(ctx context.Context, accountID string, amount int64, ref Ref) (int64, error) {
	if err := validate(accountID, amount); err != nil {
		return 0, err
	}
	return s.apply(accountID, amount, ref)
}

func (s *MemoryStore) Balance(ctx context.Context, accountID string) (int64, error) {
	if accountID == "" {
		return 0, ErrInvalidAccount
	}
	a := s.account(accountID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acct.Balance, nil
}

func (s *MemoryStore) Account(ctx context.Context, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	a := s.account(accountID)
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := a.acct
	return &cp, nil
}

func (s *MemoryStore) GrantVIP(ctx context.Context, accountID string, until time.Time) error {
	if accountID == "" {
		return ErrInvalidAccount
	}
	a := s.account(accountID)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acct.IsVIP = true
	a.acct.VIPExpiry = sql.NullTime{Time: until, Valid: true}
	a.acct.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) IncrementInvites(ctx context.Context, accountID string) error {
	if accountID == "" {
		return ErrInvalidAccount
	}
	a := s.account(accountID)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acct.InviteCount++
	a.acct.UpdatedAt = s.now()
	return nil
}

// Entries returns the newest entries first.
func (s *MemoryStore) Entries(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	a := s.account(accountID)
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.LedgerEntry, 0, len(a.entries))
	for i := len(a.entries) - 1; i >= 0; i-- {
		out = append(out, a.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

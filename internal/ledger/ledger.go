package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/rpsarena/backend/internal/models"
)

// entry types
const (
	EntryStake        = "STAKE"
	EntryQueueRefund  = "QUEUE_REFUND"
	EntryWinPayout    = "WIN_PAYOUT"
	EntryDrawRefund   = "DRAW_REFUND"
	EntryHouseForfeit = "HOUSE_FORFEIT"
	EntryReferral     = "REFERRAL"
	EntryWelcome      = "WELCOME"
	EntryAdminAdjust  = "ADMIN_ADJUST"
)

// HouseAccount receives pots nobody claimed.
const HouseAccount = "house"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicateEntry    = errors.New("ledger entry already applied")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidAccount    = errors.New("account id is empty")
)

// Ref describes why a balance changes. A non-empty Key makes the change
// idempotent per account.
type Ref struct {
	Type        string
	Key         string
	Reference   string
	Description string
}

// Store is the points ledger. Operations on one account are serialized;
// different accounts never block each other.
type Store interface {
	Debit(ctx context.Context, accountID string, amount int64, ref Ref) (int64, error)
	Credit(ctx context.Context, accountID string, amount int64, ref Ref) (int64, error)
	Balance(ctx context.Context, accountID string) (int64, error)
	Account(ctx context.Context, accountID string) (*models.Account, error)
	GrantVIP(ctx context.Context, accountID string, until time.Time) error
	IncrementInvites(ctx context.Context, accountID string) error
	Entries(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error)
}

func validate(accountID string, amount int64) error {
	if accountID == "" {
		return ErrInvalidAccount
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

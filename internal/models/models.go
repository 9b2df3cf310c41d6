package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Account is a points balance owned by the ledger
type Account struct {
	ID          string       `db:"id" json:"id"`
	Balance     int64        `db:"balance" json:"balance"`
	IsVIP       bool         `db:"is_vip" json:"is_vip"`
	VIPExpiry   sql.NullTime `db:"vip_expiry" json:"vip_expiry,omitempty"`
	InviteCount int          `db:"invite_count" json:"invite_count"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// ActiveVIP reports whether the VIP flag is set and has not yet expired.
func (a *Account) ActiveVIP(now time.Time) bool {
	if a == nil || !a.IsVIP || !a.VIPExpiry.Valid {
		return false
	}
	return a.VIPExpiry.Time.After(now)
}

// LedgerEntry is one append-only line of the points ledger
type LedgerEntry struct {
	ID             int64          `db:"id" json:"id"`
	AccountID      string         `db:"account_id" json:"account_id"`
	EntryType      string         `db:"entry_type" json:"entry_type"`
	Amount         int64          `db:"amount" json:"amount"`
	BalanceAfter   int64          `db:"balance_after" json:"balance_after"`
	IdempotencyKey sql.NullString `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Reference      string         `db:"reference" json:"reference"`
	Description    string         `db:"description" json:"description,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// SettlementIntent is a recorded intent to credit an account for a session or queue entry
type SettlementIntent struct {
	Key       string       `db:"key" json:"key"`
	Reference string       `db:"reference" json:"reference"`
	AccountID string       `db:"account_id" json:"account_id"`
	EntryType string       `db:"entry_type" json:"entry_type"`
	Amount    int64        `db:"amount" json:"amount"`
	Outcome   string       `db:"outcome" json:"outcome"`
	Delta     int64        `db:"delta" json:"delta"`
	Applied   bool         `db:"applied" json:"applied"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	AppliedAt sql.NullTime `db:"applied_at" json:"applied_at,omitempty"`
}

// StakeHold tracks an entry fee that has been debited but not yet returned or
// settled. ClosedAt is set in the same write that records the entry's refund
// or settlement intents.
type StakeHold struct {
	EntryID   string       `db:"entry_id" json:"entry_id"`
	AccountID string       `db:"account_id" json:"account_id"`
	Amount    int64        `db:"amount" json:"amount"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	ClosedAt  sql.NullTime `db:"closed_at" json:"closed_at,omitempty"`
}

// MatchRecord is the persisted summary of a finished match session
type MatchRecord struct {
	ID         string    `db:"id" json:"id"`
	Player1ID  string    `db:"player1_id" json:"player1_id"`
	Player2ID  string    `db:"player2_id" json:"player2_id"`
	Choice1    string    `db:"choice1" json:"choice1,omitempty"`
	Choice2    string    `db:"choice2" json:"choice2,omitempty"`
	State      string    `db:"state" json:"state"`
	EntryFee   int64     `db:"entry_fee" json:"entry_fee"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}

// AdminAccount represents an operator allowed to adjust balances
type AdminAccount struct {
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	TokenHash   string    `db:"token_hash" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AdminAudit is one row of the admin audit log
type AdminAudit struct {
	ID            int             `db:"id" json:"id"`
	AdminUsername string          `db:"admin_username" json:"admin_username"`
	IP            string          `db:"ip" json:"ip"`
	Route         string          `db:"route" json:"route"`
	Action        string          `db:"action" json:"action"`
	Details       json.RawMessage `db:"details" json:"details"`
	Success       bool            `db:"success" json:"success"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

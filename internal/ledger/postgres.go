package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rpsarena/backend/internal/models"
)

const accountColumns = `id, balance, is_vip, vip_expiry, invite_count, created_at, updated_at`

// PostgresStore is the durable ledger. Every mutation locks the account row
// FOR UPDATE inside a transaction and writes a ledger_entries row.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func ensureAccount(ctx context.Context, ext sqlx.ExecerContext, accountID string) error {
	_, err := ext.ExecContext(ctx, `INSERT INTO accounts (id, balance, created_at, updated_at) VALUES ($1, 0, NOW(), NOW()) ON CONFLICT (id) DO NOTHING`, accountID)
	return err
}

func (s *PostgresStore) apply(ctx context.Context, accountID string, delta int64, ref Ref) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("db is nil")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	if err := ensureAccount(ctx, tx, accountID); err != nil {
		return 0, fmt.Errorf("ensure account %s: %w", accountID, err)
	}

	var balance int64
	if err := tx.GetContext(ctx, &balance, `SELECT balance FROM accounts WHERE id=$1 FOR UPDATE`, accountID); err != nil {
		return 0, fmt.Errorf("lock account %s: %w", accountID, err)
	}

	// Idempotency: skip if an entry with this key already exists for the account
	if ref.Key != "" {
		var cnt int
		if err := tx.GetContext(ctx, &cnt, `SELECT COUNT(*) FROM ledger_entries WHERE account_id=$1 AND idempotency_key=$2`, accountID, ref.Key); err != nil {
			return 0, fmt.Errorf("check idempotency key: %w", err)
		}
		if cnt > 0 {
			return balance, ErrDuplicateEntry
		}
	}

	newBalance := balance + delta
	if newBalance < 0 {
		return balance, ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance=$1, updated_at=NOW() WHERE id=$2`, newBalance, accountID); err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	key := sql.NullString{String: ref.Key, Valid: ref.Key != ""}
	if _, err := tx.ExecContext(ctx, `INSERT INTO ledger_entries (account_id, entry_type, amount, balance_after, idempotency_key, reference, description, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		accountID, ref.Type, delta, newBalance, key, ref.Reference, ref.Description); err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ledger tx: %w", err)
	}

	log.Printf("[LEDGER] %s account=%s delta=%d balance=%d ref=%s", ref.Type, accountID, delta, newBalance, ref.Reference)
	return newBalance, nil
}

func (s *PostgresStore) Debit(ctx context.Context, accountID string, amount int64, ref Ref) (int64, error) {
	if err := validate(accountID, amount); err != nil {
		return 0, err
	}
	return s.apply(ctx, accountID, -amount, ref)
}

func (s *PostgresStore) Credit(ctx context.Context, accountID string, amount int64, ref Ref) (int64, error) {
	if err := validate(accountID, amount); err != nil {
		return 0, err
	}
	return s.apply(ctx, accountID, amount, ref)
}

func (s *PostgresStore) Balance(ctx context.Context, accountID string) (int64, error) {
	a, err := s.Account(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// Account returns the account, creating it if missing
func (s *PostgresStore) Account(ctx context.Context, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	if err := ensureAccount(ctx, s.db, accountID); err != nil {
		return nil, err
	}
	var a models.Account
	if err := s.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, accountID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) GrantVIP(ctx context.Context, accountID string, until time.Time) error {
	if accountID == "" {
		return ErrInvalidAccount
	}
	if err := ensureAccount(ctx, s.db, accountID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET is_vip=TRUE, vip_expiry=$1, updated_at=NOW() WHERE id=$2`, until, accountID)
	return err
}

func (s *PostgresStore) IncrementInvites(ctx context.Context, accountID string) error {
	if accountID == "" {
		return ErrInvalidAccount
	}
	if err := ensureAccount(ctx, s.db, accountID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET invite_count=invite_count+1, updated_at=NOW() WHERE id=$1`, accountID)
	return err
}

func (s *PostgresStore) Entries(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	if limit <= 0 {
		limit = 100
	}
	var entries []models.LedgerEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, account_id, entry_type, amount, balance_after, idempotency_key, reference, description, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, accountID, limit)
	return entries, err
}

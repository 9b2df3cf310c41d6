package game

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rpsarena/backend/internal/models"
)

// PostgresJournal persists settlement intents and finished matches
type PostgresJournal struct {
	db *sqlx.DB
}

func NewPostgresJournal(db *sqlx.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (j *PostgresJournal) Record(ctx context.Context, intents []models.SettlementIntent) error {
	if len(intents) == 0 {
		return nil
	}
	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertIntents(ctx, tx, intents); err != nil {
		return err
	}
	return tx.Commit()
}

func insertIntents(ctx context.Context, tx *sqlx.Tx, intents []models.SettlementIntent) error {
	for _, in := range intents {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO settlement_intents (key, reference, account_id, entry_type, amount, outcome, delta, applied, created_at)
			VALUES (:key, :reference, :account_id, :entry_type, :amount, :outcome, :delta, FALSE, NOW())
			ON CONFLICT (key) DO NOTHING
		`, in); err != nil {
			return fmt.Errorf("insert intent %s: %w", in.Key, err)
		}
	}
	return nil
}

func (j *PostgresJournal) MarkApplied(ctx context.Context, key string) error {
	_, err := j.db.ExecContext(ctx, `UPDATE settlement_intents SET applied=TRUE, applied_at=NOW() WHERE key=$1 AND applied=FALSE`, key)
	return err
}

func (j *PostgresJournal) Pending(ctx context.Context, limit int) ([]models.SettlementIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.SettlementIntent
	err := j.db.SelectContext(ctx, &out, `
		SELECT key, reference, account_id, entry_type, amount, outcome, delta, applied, created_at, applied_at
		FROM settlement_intents
		WHERE applied = FALSE
		ORDER BY created_at
		LIMIT $1
	`, limit)
	return out, err
}

func (j *PostgresJournal) ForReference(ctx context.Context, reference string) ([]models.SettlementIntent, error) {
	var out []models.SettlementIntent
	err := j.db.SelectContext(ctx, &out, `
		SELECT key, reference, account_id, entry_type, amount, outcome, delta, applied, created_at, applied_at
		FROM settlement_intents
		WHERE reference = $1
		ORDER BY created_at, key
	`, reference)
	return out, err
}

func (j *PostgresJournal) SaveMatch(ctx context.Context, rec models.MatchRecord) error {
	_, err := j.db.NamedExecContext(ctx, `
		INSERT INTO match_sessions (id, player1_id, player2_id, choice1, choice2, state, entry_fee, created_at, finished_at)
		VALUES (:id, :player1_id, :player2_id, :choice1, :choice2, :state, :entry_fee, :created_at, :finished_at)
		ON CONFLICT (id) DO NOTHING
	`, rec)
	return err
}

func (j *PostgresJournal) Hold(ctx context.Context, hold models.StakeHold) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO stake_holds (entry_id, account_id, amount, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (entry_id) DO NOTHING
	`, hold.EntryID, hold.AccountID, hold.Amount)
	if err != nil {
		return fmt.Errorf("insert stake hold %s: %w", hold.EntryID, err)
	}
	return nil
}

func (j *PostgresJournal) Close(ctx context.Context, entryIDs []string, intents []models.SettlementIntent) error {
	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertIntents(ctx, tx, intents); err != nil {
		return err
	}
	if len(entryIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE stake_holds SET closed_at = NOW()
			WHERE entry_id = ANY($1) AND closed_at IS NULL
		`, pq.Array(entryIDs)); err != nil {
			return fmt.Errorf("close stake holds: %w", err)
		}
	}
	return tx.Commit()
}

func (j *PostgresJournal) OpenHolds(ctx context.Context, limit int) ([]models.StakeHold, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.StakeHold
	err := j.db.SelectContext(ctx, &out, `
		SELECT entry_id, account_id, amount, created_at, closed_at
		FROM stake_holds
		WHERE closed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	return out, err
}

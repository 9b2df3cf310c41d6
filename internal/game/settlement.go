package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rpsarena/backend/internal/config"
	"github.com/rpsarena/backend/internal/ledger"
	"github.com/rpsarena/backend/internal/models"
)

// journal-only entry types, never written to the ledger because nothing is paid
const (
	entryLoss    = "LOSS"
	entryForfeit = "FORFEIT"
)

// Economics is the configurable payout schedule and timing of a match
type Economics struct {
	EntryFee     int64
	WinReward    int64
	WaitWindow   time.Duration
	ChoiceWindow time.Duration
}

func NewEconomics(cfg *config.Config) Economics {
	return Economics{
		EntryFee:     int64(cfg.GameEntryFee),
		WinReward:    int64(cfg.GameWinReward),
		WaitWindow:   time.Duration(cfg.GameWaitSeconds) * time.Second,
		ChoiceWindow: time.Duration(cfg.GameChoiceSeconds) * time.Second,
	}
}

func (e Economics) Validate() error {
	switch {
	case e.EntryFee <= 0:
		return fmt.Errorf("entry fee must be positive, got %d", e.EntryFee)
	case e.WinReward < 0:
		return fmt.Errorf("win reward must not be negative, got %d", e.WinReward)
	case e.WaitWindow <= 0:
		return fmt.Errorf("wait window must be positive, got %v", e.WaitWindow)
	case e.ChoiceWindow <= 0:
		return fmt.Errorf("choice window must be positive, got %v", e.ChoiceWindow)
	}
	return nil
}

func settleKey(sessionID, accountID string) string {
	return "settle:" + sessionID + ":" + accountID
}

func intent(sessionID, accountID, entryType string, amount int64, outcome Outcome, delta int64) models.SettlementIntent {
	return models.SettlementIntent{
		Key:       settleKey(sessionID, accountID),
		Reference: sessionID,
		AccountID: accountID,
		EntryType: entryType,
		Amount:    amount,
		Outcome:   string(outcome),
		Delta:     delta,
	}
}

// buildIntents turns a terminal session into per-account payouts. Net deltas
// are relative to the entry fee each player paid when joining.
func buildIntents(v SessionView, econ Economics) []models.SettlementIntent {
	fee, reward := econ.EntryFee, econ.WinReward
	win := func(id string) models.SettlementIntent {
		return intent(v.ID, id, ledger.EntryWinPayout, fee+reward, OutcomeWin, reward)
	}

	switch v.State {
	case StateResolved:
		switch Decide(v.Choice1, v.Choice2) {
		case 0:
			return []models.SettlementIntent{
				intent(v.ID, v.Player1, ledger.EntryDrawRefund, fee, OutcomeDraw, 0),
				intent(v.ID, v.Player2, ledger.EntryDrawRefund, fee, OutcomeDraw, 0),
			}
		case 1:
			return []models.SettlementIntent{win(v.Player1), intent(v.ID, v.Player2, entryLoss, 0, OutcomeLose, -fee)}
		default:
			return []models.SettlementIntent{intent(v.ID, v.Player1, entryLoss, 0, OutcomeLose, -fee), win(v.Player2)}
		}

	case StateExpired:
		submitted1, submitted2 := v.Choice1 != "", v.Choice2 != ""
		switch {
		case submitted1 && !submitted2:
			return []models.SettlementIntent{win(v.Player1), intent(v.ID, v.Player2, entryForfeit, 0, OutcomeForfeit, -fee)}
		case submitted2 && !submitted1:
			return []models.SettlementIntent{intent(v.ID, v.Player1, entryForfeit, 0, OutcomeForfeit, -fee), win(v.Player2)}
		default:
			// nobody moved: the pot goes to the house as an explicit entry
			return []models.SettlementIntent{
				intent(v.ID, v.Player1, entryForfeit, 0, OutcomeForfeit, -fee),
				intent(v.ID, v.Player2, entryForfeit, 0, OutcomeForfeit, -fee),
				intent(v.ID, ledger.HouseAccount, ledger.EntryHouseForfeit, 2*fee, "", 0),
			}
		}
	}
	return nil
}

func describe(entryType string) string {
	switch entryType {
	case ledger.EntryWinPayout:
		return "Match won - stake returned plus reward"
	case ledger.EntryDrawRefund:
		return "Match drawn - stake returned"
	case ledger.EntryHouseForfeit:
		return "Nobody chose in time - pot absorbed by house"
	case ledger.EntryQueueRefund:
		return "No opponent - stake returned"
	}
	return entryType
}

// applyIntents credits every intent that carries an amount. Duplicate
// entries mean an earlier run already paid and count as success.
func (e *Engine) applyIntents(ctx context.Context, intents []models.SettlementIntent) (int, error) {
	var firstErr error
	applied := 0
	for _, in := range intents {
		if in.Amount > 0 {
			_, err := e.ledger.Credit(ctx, in.AccountID, in.Amount, ledger.Ref{
				Type:        in.EntryType,
				Key:         in.Key,
				Reference:   in.Reference,
				Description: describe(in.EntryType),
			})
			if err != nil && !errors.Is(err, ledger.ErrDuplicateEntry) {
				log.Printf("[SETTLE] Failed to credit %d to %s for %s: %v", in.Amount, in.AccountID, in.Reference, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if errors.Is(err, ledger.ErrDuplicateEntry) {
				log.Printf("[SETTLE] Credit %s already applied", in.Key)
			}
		}
		if err := e.journal.MarkApplied(ctx, in.Key); err != nil {
			log.Printf("[SETTLE] Failed to mark %s applied: %v", in.Key, err)
		}
		applied++
	}
	return applied, firstErr
}

// finish settles a session that just reached a terminal state: record the
// intents, pay, release the players, then notify.
func (e *Engine) finish(ctx context.Context, s *Session) {
	v := s.Snapshot()
	now := e.clock.Now()
	intents := buildIntents(v, e.econ)
	for i := range intents {
		intents[i].CreatedAt = now
	}

	if err := e.journal.Close(ctx, s.entries[:], intents); err != nil {
		// the stakes stay held, so recovery returns them instead of paying out
		log.Printf("[SETTLE] Failed to record intents for session %s, voiding it: %v", v.ID, err)
		e.release(v, s.entries)
		return
	}
	rec := models.MatchRecord{
		ID:         v.ID,
		Player1ID:  v.Player1,
		Player2ID:  v.Player2,
		Choice1:    string(v.Choice1),
		Choice2:    string(v.Choice2),
		State:      string(v.State),
		EntryFee:   e.econ.EntryFee,
		CreatedAt:  v.CreatedAt,
		FinishedAt: now,
	}
	if err := e.journal.SaveMatch(ctx, rec); err != nil {
		log.Printf("[SETTLE] Failed to save match record %s: %v", v.ID, err)
	}

	if _, err := e.applyIntents(ctx, intents); err != nil {
		log.Printf("[SETTLE] Session %s left pending intents for recovery: %v", v.ID, err)
	}

	e.release(v, s.entries)

	log.Printf("[MATCH] Session %s finished state=%s choices=[%s,%s]", v.ID, v.State, v.Choice1, v.Choice2)

	for _, in := range intents {
		if in.Outcome == "" {
			continue
		}
		if err := e.notifier.NotifyResult(ctx, v.ID, in.AccountID, Outcome(in.Outcome), in.Delta); err != nil {
			log.Printf("[MATCH] Failed to notify result to %s for session %s: %v", in.AccountID, v.ID, err)
		}
	}
}

// release drops a finished session and its entries from the live registry
func (e *Engine) release(v SessionView, entries [2]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, v.ID)
	for _, p := range []string{v.Player1, v.Player2} {
		if e.players[p] == v.ID {
			delete(e.players, p)
		}
	}
	for _, id := range entries {
		delete(e.live, id)
	}
}

// Resettle re-applies every recorded intent for a session. Running it any
// number of times leaves balances as a single settlement would.
func (e *Engine) Resettle(ctx context.Context, sessionID string) error {
	intents, err := e.journal.ForReference(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load intents for %s: %w", sessionID, err)
	}
	if len(intents) == 0 {
		return ErrSessionNotFound
	}
	_, err = e.applyIntents(ctx, intents)
	return err
}

// RecoverPending returns stakes whose queue entry or session was lost, then
// applies intents that were recorded but never marked applied.
func (e *Engine) RecoverPending(ctx context.Context) (int, error) {
	returned, holdErr := e.returnOrphanedStakes(ctx)

	pending, err := e.journal.Pending(ctx, 100)
	if err != nil {
		return returned, fmt.Errorf("load pending intents: %w", err)
	}
	if len(pending) == 0 {
		return returned, holdErr
	}
	log.Printf("[RECOVERY] Replaying %d pending intents", len(pending))
	n, err := e.applyIntents(ctx, pending)
	if err == nil {
		err = holdErr
	}
	return returned + n, err
}

// returnOrphanedStakes refunds open stake holds that no entry or session of
// this engine owns, such as those left behind by a restart.
func (e *Engine) returnOrphanedStakes(ctx context.Context) (int, error) {
	holds, err := e.journal.OpenHolds(ctx, 100)
	if err != nil {
		return 0, fmt.Errorf("load open stake holds: %w", err)
	}

	var firstErr error
	returned := 0
	for _, h := range holds {
		e.mu.Lock()
		_, owned := e.live[h.EntryID]
		e.mu.Unlock()
		if owned {
			continue
		}

		log.Printf("[RECOVERY] Returning orphaned stake of entry %s to %s", h.EntryID, h.AccountID)
		entry := &waitingEntry{ID: h.EntryID, AccountID: h.AccountID, Fee: h.Amount}
		if err := e.refund(ctx, entry, false); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		returned++
	}
	return returned, firstErr
}

package game

import (
	"context"
	"errors"
	"time"
)

// Notifier delivers match events to players. Implementations belong to the
// transport layer; the engine only logs their errors.
type Notifier interface {
	NotifyMatchFound(ctx context.Context, sessionID, player1ID, player2ID string) error
	NotifyChoicePrompt(ctx context.Context, sessionID, accountID string, deadline time.Time) error
	NotifyResult(ctx context.Context, sessionID, accountID string, outcome Outcome, pointsDelta int64) error
	NotifyQueueTimeout(ctx context.Context, accountID string, refunded int64) error
}

type NopNotifier struct{}

func (NopNotifier) NotifyMatchFound(context.Context, string, string, string) error {
	return nil
}

func (NopNotifier) NotifyChoicePrompt(context.Context, string, string, time.Time) error {
	return nil
}

func (NopNotifier) NotifyResult(context.Context, string, string, Outcome, int64) error {
	return nil
}

func (NopNotifier) NotifyQueueTimeout(context.Context, string, int64) error {
	return nil
}

// MultiNotifier fans each event out to every sink. A failing sink does not
// stop delivery to the others.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyMatchFound(ctx context.Context, sessionID, player1ID, player2ID string) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.NotifyMatchFound(ctx, sessionID, player1ID, player2ID))
	}
	return errors.Join(errs...)
}

func (m MultiNotifier) NotifyChoicePrompt(ctx context.Context, sessionID, accountID string, deadline time.Time) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.NotifyChoicePrompt(ctx, sessionID, accountID, deadline))
	}
	return errors.Join(errs...)
}

func (m MultiNotifier) NotifyResult(ctx context.Context, sessionID, accountID string, outcome Outcome, pointsDelta int64) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.NotifyResult(ctx, sessionID, accountID, outcome, pointsDelta))
	}
	return errors.Join(errs...)
}

func (m MultiNotifier) NotifyQueueTimeout(ctx context.Context, accountID string, refunded int64) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.NotifyQueueTimeout(ctx, accountID, refunded))
	}
	return errors.Join(errs...)
}

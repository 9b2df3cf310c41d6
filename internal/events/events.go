package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rpsarena/backend/internal/game"
)

// Channel is the Redis pub/sub channel match events travel on
const Channel = "match_events"

// event types
const (
	TypeMatchFound   = "match_found"
	TypeChoicePrompt = "choice_prompt"
	TypeResult       = "match_result"
	TypeQueueTimeout = "queue_timeout"
)

// Event is the wire form of a notification. AccountID names the recipient;
// match_found is addressed to both Players instead.
type Event struct {
	Type      string     `json:"type"`
	SessionID string     `json:"session_id,omitempty"`
	AccountID string     `json:"account_id,omitempty"`
	Players   []string   `json:"players,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Outcome   string     `json:"outcome,omitempty"`
	Delta     int64      `json:"points_delta,omitempty"`
	Refunded  int64      `json:"refunded,omitempty"`
	At        time.Time  `json:"at"`
}

// Recipients lists the accounts an event is meant for
func (e Event) Recipients() []string {
	if e.AccountID != "" {
		return []string{e.AccountID}
	}
	return e.Players
}

// Sink receives encoded events
type Sink func(ctx context.Context, ev Event) error

// Notifier turns engine callbacks into Events and hands them to a Sink
type Notifier struct {
	sink Sink
}

func NewNotifier(sink Sink) *Notifier {
	return &Notifier{sink: sink}
}

func (n *Notifier) NotifyMatchFound(ctx context.Context, sessionID, player1ID, player2ID string) error {
	return n.sink(ctx, Event{
		Type:      TypeMatchFound,
		SessionID: sessionID,
		Players:   []string{player1ID, player2ID},
		At:        time.Now(),
	})
}

func (n *Notifier) NotifyChoicePrompt(ctx context.Context, sessionID, accountID string, deadline time.Time) error {
	return n.sink(ctx, Event{
		Type:      TypeChoicePrompt,
		SessionID: sessionID,
		AccountID: accountID,
		Deadline:  &deadline,
		At:        time.Now(),
	})
}

func (n *Notifier) NotifyResult(ctx context.Context, sessionID, accountID string, outcome game.Outcome, pointsDelta int64) error {
	return n.sink(ctx, Event{
		Type:      TypeResult,
		SessionID: sessionID,
		AccountID: accountID,
		Outcome:   string(outcome),
		Delta:     pointsDelta,
		At:        time.Now(),
	})
}

func (n *Notifier) NotifyQueueTimeout(ctx context.Context, accountID string, refunded int64) error {
	return n.sink(ctx, Event{
		Type:      TypeQueueTimeout,
		AccountID: accountID,
		Refunded:  refunded,
		At:        time.Now(),
	})
}

// RedisSink publishes events as JSON on channel
func RedisSink(rdb *redis.Client, channel string) Sink {
	return func(ctx context.Context, ev Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", ev.Type, err)
		}
		if err := rdb.Publish(ctx, channel, data).Err(); err != nil {
			return fmt.Errorf("publish %s event: %w", ev.Type, err)
		}
		return nil
	}
}

// Decode parses a payload received from the channel
func Decode(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("invalid event payload: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("invalid event payload: missing type")
	}
	return ev, nil
}

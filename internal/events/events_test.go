package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rpsarena/backend/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ game.Notifier = (*Notifier)(nil)

func capture() (*Notifier, *[]Event) {
	var got []Event
	return NewNotifier(func(_ context.Context, ev Event) error {
		got = append(got, ev)
		return nil
	}), &got
}

func TestNotifierAddressesEvents(t *testing.T) {
	ctx := context.Background()
	n, got := capture()
	deadline := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, n.NotifyMatchFound(ctx, "m_1", "alice", "bob"))
	require.NoError(t, n.NotifyChoicePrompt(ctx, "m_1", "alice", deadline))
	require.NoError(t, n.NotifyResult(ctx, "m_1", "bob", game.OutcomeLose, -1))
	require.NoError(t, n.NotifyQueueTimeout(ctx, "carol", 1))

	require.Len(t, *got, 4)
	assert.Equal(t, []string{"alice", "bob"}, (*got)[0].Recipients())
	assert.Equal(t, deadline, *(*got)[1].Deadline)
	assert.Equal(t, []string{"bob"}, (*got)[2].Recipients())
	assert.Equal(t, "lose", (*got)[2].Outcome)
	assert.Equal(t, int64(1), (*got)[3].Refunded)
}

func TestDecode(t *testing.T) {
	data, err := json.Marshal(Event{Type: TypeResult, SessionID: "m_1", AccountID: "alice", Outcome: "win", Delta: 2})
	require.NoError(t, err)

	ev, err := Decode(string(data))
	require.NoError(t, err)
	assert.Equal(t, "m_1", ev.SessionID)
	assert.Equal(t, int64(2), ev.Delta)

	_, err = Decode("{}")
	assert.Error(t, err)
	_, err = Decode("not json")
	assert.Error(t, err)
}

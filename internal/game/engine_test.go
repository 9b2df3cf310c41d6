package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rpsarena/backend/internal/ledger"
	"github.com/rpsarena/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEcon = Economics{
	EntryFee:     1,
	WinReward:    2,
	WaitWindow:   30 * time.Second,
	ChoiceWindow: 7 * time.Second,
}

type resultEvent struct {
	SessionID string
	Outcome   Outcome
	Delta     int64
}

// recorder is a Notifier that remembers everything it was told
type recorder struct {
	mu       sync.Mutex
	found    []string
	prompts  map[string]int
	results  map[string][]resultEvent
	timeouts map[string]int64
}

func newRecorder() *recorder {
	return &recorder{
		prompts:  make(map[string]int),
		results:  make(map[string][]resultEvent),
		timeouts: make(map[string]int64),
	}
}

func (r *recorder) NotifyMatchFound(_ context.Context, sessionID, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.found = append(r.found, sessionID)
	return nil
}

func (r *recorder) NotifyChoicePrompt(_ context.Context, _, accountID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[accountID]++
	return nil
}

func (r *recorder) NotifyResult(_ context.Context, sessionID, accountID string, outcome Outcome, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[accountID] = append(r.results[accountID], resultEvent{sessionID, outcome, delta})
	return nil
}

func (r *recorder) NotifyQueueTimeout(_ context.Context, accountID string, refunded int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeouts[accountID] += refunded
	return nil
}

func (r *recorder) resultsFor(accountID string) []resultEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]resultEvent(nil), r.results[accountID]...)
}

func (r *recorder) timeoutFor(accountID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeouts[accountID]
}

// unreachableNotifier fails every delivery
type unreachableNotifier struct{ NopNotifier }

func (unreachableNotifier) NotifyResult(context.Context, string, string, Outcome, int64) error {
	return errors.New("transport down")
}

// flakyStore fails the next n credits
type flakyStore struct {
	ledger.Store
	mu   sync.Mutex
	fail int
}

func (f *flakyStore) Credit(ctx context.Context, accountID string, amount int64, ref ledger.Ref) (int64, error) {
	f.mu.Lock()
	if f.fail > 0 {
		f.fail--
		f.mu.Unlock()
		return 0, errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.Store.Credit(ctx, accountID, amount, ref)
}

type harness struct {
	t       *testing.T
	store   *ledger.MemoryStore
	journal *MemoryJournal
	notes   *recorder
	clock   *clockwork.FakeClock
	engine  *Engine
}

func newHarness(t *testing.T, balances map[string]int64) *harness {
	t.Helper()
	clock := clockwork.NewFakeClock()
	h := &harness{
		t:       t,
		store:   ledger.NewMemoryStore(),
		journal: NewMemoryJournal().WithClock(clock),
		notes:   newRecorder(),
		clock:   clock,
	}
	for id, bal := range balances {
		if bal <= 0 {
			continue
		}
		_, err := h.store.Credit(context.Background(), id, bal, ledger.Ref{Type: ledger.EntryAdminAdjust})
		require.NoError(t, err)
	}
	h.engine = NewEngine(h.store, h.journal, h.notes, h.clock, testEcon)
	return h
}

func (h *harness) balance(id string) int64 {
	h.t.Helper()
	bal, err := h.store.Balance(context.Background(), id)
	require.NoError(h.t, err)
	return bal
}

// pair joins two accounts and returns their session
func (h *harness) pair(a, b string) string {
	h.t.Helper()
	ctx := context.Background()
	first, err := h.engine.Join(ctx, a)
	require.NoError(h.t, err)
	require.Empty(h.t, first.SessionID)
	second, err := h.engine.Join(ctx, b)
	require.NoError(h.t, err)
	require.NotEmpty(h.t, second.SessionID)
	return second.SessionID
}

func (h *harness) waitSettled() {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.engine.Stats().Sessions == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRockBeatsScissors(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 10, "bob": 10})
	ctx := context.Background()
	sid := h.pair("alice", "bob")

	require.NoError(t, h.engine.SubmitChoice(ctx, "alice", sid, Rock))
	require.NoError(t, h.engine.SubmitChoice(ctx, "bob", sid, Scissors))

	assert.Equal(t, int64(12), h.balance("alice"))
	assert.Equal(t, int64(9), h.balance("bob"))
	assert.Equal(t, []resultEvent{{sid, OutcomeWin, 2}}, h.notes.resultsFor("alice"))
	assert.Equal(t, []resultEvent{{sid, OutcomeLose, -1}}, h.notes.resultsFor("bob"))

	rec, ok := h.journal.Match(sid)
	require.True(t, ok)
	assert.Equal(t, string(StateResolved), rec.State)
	assert.True(t, rec.FinishedAt.Equal(h.clock.Now()), "finish time follows the engine clock")
	assert.Equal(t, 0, h.engine.Stats().Sessions)
}

func TestDrawReturnsStakes(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 5, "bob": 5})
	ctx := context.Background()
	sid := h.pair("alice", "bob")

	require.NoError(t, h.engine.SubmitChoice(ctx, "bob", sid, Paper))
	require.NoError(t, h.engine.SubmitChoice(ctx, "alice", sid, Paper))

	assert.Equal(t, int64(5), h.balance("alice"))
	assert.Equal(t, int64(5), h.balance("bob"))
	assert.Equal(t, OutcomeDraw, h.notes.resultsFor("alice")[0].Outcome)
	assert.Equal(t, int64(0), h.notes.resultsFor("bob")[0].Delta)
}

func TestTimeoutAwardsTheOnlySubmitter(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 10, "bob": 10})
	sid := h.pair("alice", "bob")

	require.NoError(t, h.engine.SubmitChoice(context.Background(), "alice", sid, Scissors))
	h.clock.Advance(testEcon.ChoiceWindow)
	h.waitSettled()

	assert.Equal(t, int64(12), h.balance("alice"))
	assert.Equal(t, int64(9), h.balance("bob"))
	assert.Equal(t, OutcomeForfeit, h.notes.resultsFor("bob")[0].Outcome)

	rec, ok := h.journal.Match(sid)
	require.True(t, ok)
	assert.Equal(t, string(StateExpired), rec.State)
}

func TestTimeoutWithNoChoicesPaysTheHouse(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 10, "bob": 10})
	sid := h.pair("alice", "bob")

	h.clock.Advance(testEcon.ChoiceWindow + time.Second)
	h.waitSettled()

	assert.Equal(t, int64(9), h.balance("alice"))
	assert.Equal(t, int64(9), h.balance("bob"))
	assert.Equal(t, int64(2), h.balance(ledger.HouseAccount))

	entries, err := h.store.Entries(context.Background(), ledger.HouseAccount, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.EntryHouseForfeit, entries[0].EntryType)
	assert.Equal(t, sid, entries[0].Reference)
}

func TestChoiceBeforeDeadlineIsNotExpired(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 10, "bob": 10})
	ctx := context.Background()
	sid := h.pair("alice", "bob")

	h.clock.Advance(testEcon.ChoiceWindow - time.Second)
	require.NoError(t, h.engine.SubmitChoice(ctx, "alice", sid, Paper))
	require.NoError(t, h.engine.SubmitChoice(ctx, "bob", sid, Rock))

	h.clock.Advance(5 * time.Second)
	assert.Never(t, func() bool { return h.balance(ledger.HouseAccount) != 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, int64(12), h.balance("alice"))
	assert.Equal(t, int64(9), h.balance("bob"))
}

func TestSubmitAfterResolutionIsRejected(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 10, "bob": 10})
	ctx := context.Background()
	sid := h.pair("alice", "bob")
	require.NoError(t, h.engine.SubmitChoice(ctx, "alice", sid, Rock))
	require.NoError(t, h.engine.SubmitChoice(ctx, "bob", sid, Paper))

	err := h.engine.SubmitChoice(ctx, "alice", sid, Scissors)
	assert.True(t, errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrStaleSubmission))
	assert.Equal(t, int64(9), h.balance("alice"))
	assert.Equal(t, int64(12), h.balance("bob"))

	assert.ErrorIs(t, h.engine.SubmitChoice(ctx, "alice", "m_missing", Rock), ErrSessionNotFound)
}

func TestDuplicateSubmitInSession(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 10, "bob": 10})
	ctx := context.Background()
	sid := h.pair("alice", "bob")

	require.NoError(t, h.engine.SubmitChoice(ctx, "alice", sid, Rock))
	assert.ErrorIs(t, h.engine.SubmitChoice(ctx, "alice", sid, Paper), ErrAlreadyActive)
	assert.ErrorIs(t, h.engine.SubmitChoice(ctx, "carol", sid, Paper), ErrNotParticipant)
}

func TestJoinWhileActiveIsRejected(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 10, "bob": 10})
	ctx := context.Background()

	_, err := h.engine.Join(ctx, "alice")
	require.NoError(t, err)
	_, err = h.engine.Join(ctx, "alice")
	assert.ErrorIs(t, err, ErrAlreadyActive)
	assert.Equal(t, int64(9), h.balance("alice"), "no second debit")

	res, err := h.engine.Join(ctx, "bob")
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)

	_, err = h.engine.Join(ctx, "bob")
	assert.ErrorIs(t, err, ErrAlreadyActive)
	assert.Equal(t, int64(9), h.balance("bob"))
}

func TestJoinWithoutFunds(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 0})

	_, err := h.engine.Join(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, h.engine.Status("alice").Queued)
	assert.Equal(t, Stats{}, h.engine.Stats())
	assert.Equal(t, int64(0), h.balance("alice"))

	holds, err := h.journal.OpenHolds(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, holds)

	_, err = h.engine.Join(context.Background(), ledger.HouseAccount)
	assert.ErrorIs(t, err, ledger.ErrInvalidAccount)
}

func TestConcurrentJoinsPairExactlyOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t, map[string]int64{"alice": 1, "bob": 1})
		var wg sync.WaitGroup
		for _, id := range []string{"alice", "bob"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := h.engine.Join(context.Background(), id)
				assert.NoError(t, err)
			}(id)
		}
		wg.Wait()

		require.Equal(t, Stats{Waiting: 0, Sessions: 1}, h.engine.Stats())
		st := h.engine.Status("alice").Session
		require.NotNil(t, st)
		assert.NotEqual(t, st.Player1, st.Player2)
	}
}

func TestManyConcurrentJoinsNeverSelfPair(t *testing.T) {
	balances := make(map[string]int64)
	for i := 0; i < 40; i++ {
		balances[fmt.Sprintf("p%02d", i)] = 3
	}
	h := newHarness(t, balances)

	var wg sync.WaitGroup
	for id := range balances {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.engine.Join(context.Background(), id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, Stats{Waiting: 0, Sessions: 20}, h.engine.Stats())
	seen := make(map[string]string)
	for id := range balances {
		v := h.engine.Status(id).Session
		require.NotNil(t, v, id)
		assert.NotEqual(t, v.Player1, v.Player2)
		if other, ok := seen[v.ID]; ok {
			assert.NotEqual(t, other, id)
		}
		seen[v.ID] = id
	}
}

func TestQueueIsFIFO(t *testing.T) {
	h := newHarness(t, map[string]int64{"a": 5, "b": 5, "c": 5, "d": 5})
	ctx := context.Background()

	_, err := h.engine.Join(ctx, "a")
	require.NoError(t, err)
	_, err = h.engine.Leave(ctx, "a")
	require.NoError(t, err)

	_, err = h.engine.Join(ctx, "b")
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	res, err := h.engine.Join(ctx, "c")
	require.NoError(t, err)

	v, ok := h.engine.Session(res.SessionID)
	require.True(t, ok)
	assert.Equal(t, "b", v.Player1)
	assert.Equal(t, "c", v.Player2)

	res, err = h.engine.Join(ctx, "d")
	require.NoError(t, err)
	assert.Empty(t, res.SessionID)
	assert.Equal(t, 1, res.Position)
	assert.Equal(t, 1, h.engine.Status("d").Position)
}

func TestLeaveRefundsOnce(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 4})
	ctx := context.Background()

	_, err := h.engine.Join(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.balance("alice"))

	refunded, err := h.engine.Leave(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), refunded)
	assert.Equal(t, int64(4), h.balance("alice"))

	_, err = h.engine.Leave(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotQueued)

	h.clock.Advance(testEcon.WaitWindow * 2)
	assert.Never(t, func() bool { return h.balance("alice") != 4 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Zero(t, h.notes.timeoutFor("alice"))
}

func TestQueueExpiryRefunds(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 2})

	_, err := h.engine.Join(context.Background(), "alice")
	require.NoError(t, err)
	h.clock.Advance(testEcon.WaitWindow)

	require.Eventually(t, func() bool {
		return h.notes.timeoutFor("alice") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), h.balance("alice"))
	assert.False(t, h.engine.Status("alice").Queued)

	// free to queue again
	_, err = h.engine.Join(context.Background(), "alice")
	assert.NoError(t, err)
}

func TestPairedEntryDoesNotExpire(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 2, "bob": 2})
	ctx := context.Background()

	_, err := h.engine.Join(ctx, "alice")
	require.NoError(t, err)
	h.clock.Advance(testEcon.WaitWindow - time.Second)
	sid := h.pair2("bob")

	require.NoError(t, h.engine.SubmitChoice(ctx, "alice", sid, Rock))
	require.NoError(t, h.engine.SubmitChoice(ctx, "bob", sid, Rock))
	h.clock.Advance(testEcon.WaitWindow)

	assert.Never(t, func() bool { return h.notes.timeoutFor("alice") != 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, int64(2), h.balance("alice"))
}

func (h *harness) pair2(id string) string {
	h.t.Helper()
	res, err := h.engine.Join(context.Background(), id)
	require.NoError(h.t, err)
	require.NotEmpty(h.t, res.SessionID)
	return res.SessionID
}

func TestResettleConvergesToSingleSettlement(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 10, "bob": 10})
	ctx := context.Background()
	sid := h.pair("alice", "bob")
	require.NoError(t, h.engine.SubmitChoice(ctx, "alice", sid, Rock))
	require.NoError(t, h.engine.SubmitChoice(ctx, "bob", sid, Scissors))

	for i := 0; i < 3; i++ {
		require.NoError(t, h.engine.Resettle(ctx, sid))
	}
	assert.Equal(t, int64(12), h.balance("alice"))
	assert.Equal(t, int64(9), h.balance("bob"))

	assert.ErrorIs(t, h.engine.Resettle(ctx, "m_unknown"), ErrSessionNotFound)
}

func TestFailedCreditIsRecovered(t *testing.T) {
	store := &flakyStore{Store: ledger.NewMemoryStore()}
	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		_, err := store.Credit(ctx, id, 10, ledger.Ref{Type: ledger.EntryAdminAdjust})
		require.NoError(t, err)
	}
	journal := NewMemoryJournal()
	e := NewEngine(store, journal, nil, clockwork.NewFakeClock(), testEcon)

	_, err := e.Join(ctx, "alice")
	require.NoError(t, err)
	res, err := e.Join(ctx, "bob")
	require.NoError(t, err)

	store.fail = 1
	require.NoError(t, e.SubmitChoice(ctx, "alice", res.SessionID, Paper))
	require.NoError(t, e.SubmitChoice(ctx, "bob", res.SessionID, Rock))

	bal, _ := store.Balance(ctx, "alice")
	assert.Equal(t, int64(9), bal, "payout failed, stake still out")

	pending, err := journal.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "settle:"+res.SessionID+":alice", pending[0].Key)

	n, err := e.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	bal, _ = store.Balance(ctx, "alice")
	assert.Equal(t, int64(12), bal)

	n, err = e.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotifierFailureDoesNotAffectLedger(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		_, err := store.Credit(ctx, id, 10, ledger.Ref{Type: ledger.EntryAdminAdjust})
		require.NoError(t, err)
	}
	journal := NewMemoryJournal()
	e := NewEngine(store, journal, unreachableNotifier{}, clockwork.NewFakeClock(), testEcon)

	_, err := e.Join(ctx, "alice")
	require.NoError(t, err)
	res, err := e.Join(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, e.SubmitChoice(ctx, "alice", res.SessionID, Scissors))
	require.NoError(t, e.SubmitChoice(ctx, "bob", res.SessionID, Paper))

	bal, _ := store.Balance(ctx, "alice")
	assert.Equal(t, int64(12), bal)
	pending, _ := journal.Pending(ctx, 0)
	assert.Empty(t, pending)
}

// Every account must end at its starting balance plus the deltas it was told about.
func TestRandomizedConservation(t *testing.T) {
	const players = 20
	const rounds = 15
	balances := make(map[string]int64)
	ids := make([]string, players)
	for i := range ids {
		ids[i] = fmt.Sprintf("acct%02d", i)
		balances[ids[i]] = 50
	}
	h := newHarness(t, balances)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	choices := []Choice{Rock, Paper, Scissors}

	var housePots int64
	for round := 0; round < rounds; round++ {
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

		// a few players bail out of the queue before being paired
		var sessions []string
		for _, id := range ids {
			res, err := h.engine.Join(ctx, id)
			require.NoError(t, err)
			if res.SessionID != "" {
				sessions = append(sessions, res.SessionID)
				continue
			}
			if rng.Intn(5) == 0 {
				_, err := h.engine.Leave(ctx, id)
				require.NoError(t, err)
			}
		}

		for _, sid := range sessions {
			v, ok := h.engine.Session(sid)
			require.True(t, ok)
			submitted := 0
			for _, p := range []string{v.Player1, v.Player2} {
				if rng.Intn(4) == 0 {
					continue
				}
				submitted++
				require.NoError(t, h.engine.SubmitChoice(ctx, p, sid, choices[rng.Intn(3)]))
			}
			if submitted == 0 {
				housePots += 2 * testEcon.EntryFee
			}
		}

		h.clock.Advance(testEcon.ChoiceWindow)
		h.waitSettled()
		if st := h.engine.Stats(); st.Waiting > 0 {
			h.clock.Advance(testEcon.WaitWindow)
			require.Eventually(t, func() bool { return h.engine.Stats().Waiting == 0 }, time.Second, 5*time.Millisecond)
		}
	}

	require.Eventually(t, func() bool {
		pending, _ := h.journal.Pending(ctx, 0)
		return len(pending) == 0
	}, time.Second, 5*time.Millisecond)

	for _, id := range ids {
		var delta int64
		for _, r := range h.notes.resultsFor(id) {
			delta += r.Delta
		}
		assert.Equal(t, balances[id]+delta, h.balance(id), id)
	}
	assert.Equal(t, housePots, h.balance(ledger.HouseAccount))
}

func TestShutdownRefundsWaiting(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 3, "bob": 3})
	ctx := context.Background()

	_, err := h.engine.Join(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, h.engine.Shutdown(ctx))
	assert.Equal(t, int64(3), h.balance("alice"))
	assert.Equal(t, int64(1), h.notes.timeoutFor("alice"))

	_, err = h.engine.Join(ctx, "bob")
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.Equal(t, int64(3), h.balance("bob"))
}

func TestShutdownWaitsForLiveSessions(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 3, "bob": 3})
	sid := h.pair("alice", "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.engine.Shutdown(ctx), context.DeadlineExceeded)

	require.NoError(t, h.engine.SubmitChoice(context.Background(), "alice", sid, Rock))
	require.NoError(t, h.engine.SubmitChoice(context.Background(), "bob", sid, Rock))
	assert.NoError(t, h.engine.Shutdown(context.Background()))
}

// restart drops the engine and builds a new one over the same ledger and journal
func (h *harness) restart() {
	h.engine = NewEngine(h.store, h.journal, h.notes, h.clock, testEcon)
}

func TestRestartReturnsQueuedStake(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 5})
	ctx := context.Background()

	_, err := h.engine.Join(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(4), h.balance("alice"))

	h.restart()
	n, err := h.engine.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(5), h.balance("alice"))

	n, err = h.engine.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(5), h.balance("alice"))
}

func TestRestartReturnsStakesOfLiveSession(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 5, "bob": 5})
	ctx := context.Background()
	sid := h.pair("alice", "bob")
	require.NoError(t, h.engine.SubmitChoice(ctx, "alice", sid, Rock))

	h.restart()
	n, err := h.engine.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(5), h.balance("alice"))
	assert.Equal(t, int64(5), h.balance("bob"))

	holds, err := h.journal.OpenHolds(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestRestartLeavesSettledSessionsAlone(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 10, "bob": 10})
	ctx := context.Background()
	sid := h.pair("alice", "bob")
	require.NoError(t, h.engine.SubmitChoice(ctx, "alice", sid, Paper))
	require.NoError(t, h.engine.SubmitChoice(ctx, "bob", sid, Rock))

	h.restart()
	n, err := h.engine.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(12), h.balance("alice"))
	assert.Equal(t, int64(9), h.balance("bob"))
}

func TestRecoveryKeepsLiveStakes(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 5, "bob": 5, "carol": 5})
	ctx := context.Background()
	h.pair("alice", "bob")
	_, err := h.engine.Join(ctx, "carol")
	require.NoError(t, err)

	n, err := h.engine.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(4), h.balance("carol"))
	assert.True(t, h.engine.Status("carol").Queued)
	assert.Equal(t, Stats{Waiting: 1, Sessions: 1}, h.engine.Stats())
}

// holdlessJournal cannot open stake holds
type holdlessJournal struct {
	*MemoryJournal
}

func (holdlessJournal) Hold(context.Context, models.StakeHold) error {
	return errors.New("journal unavailable")
}

func TestJoinReturnsStakeWhenHoldFails(t *testing.T) {
	h := newHarness(t, map[string]int64{"alice": 5})
	h.engine = NewEngine(h.store, holdlessJournal{h.journal}, h.notes, h.clock, testEcon)

	_, err := h.engine.Join(context.Background(), "alice")
	assert.Error(t, err)
	assert.Equal(t, int64(5), h.balance("alice"))
	assert.Equal(t, Stats{}, h.engine.Stats())
	assert.False(t, h.engine.Status("alice").Queued)
}

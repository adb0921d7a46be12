package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantclub/paperledger/internal/config"
	"github.com/quantclub/paperledger/internal/domain/ledger"
	"github.com/quantclub/paperledger/internal/domain/risk"
	"github.com/quantclub/paperledger/internal/domain/valuation"
	"github.com/quantclub/paperledger/internal/engine"
	"github.com/quantclub/paperledger/internal/store"
)

type stubLedger struct{}

func (stubLedger) ListByProfile(_ context.Context, _ string) ([]ledger.TradeEvent, error) {
	return []ledger.TradeEvent{{
		ID: "t1", ProfileID: "p1", Timestamp: time.Now().Add(-time.Hour),
		Symbol: "AAPL", Side: ledger.SideBuy, Quantity: 100, Price: 150,
	}}, nil
}

type countingProfiles struct {
	mu              sync.Mutex
	aggregateWrites int
}

func (p *countingProfiles) Get(_ context.Context, id string) (*store.Profile, error) {
	return &store.Profile{ID: id, InitialCapital: 100000, ScoreLastUpdated: time.Now()}, nil
}

func (p *countingProfiles) UpdateAggregates(_ context.Context, _ string, _ store.ProfileAggregates) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aggregateWrites++
	return nil
}

func (p *countingProfiles) UpdateScore(_ context.Context, _ string, _ store.ScoreUpdate) error {
	return nil
}

func (p *countingProfiles) Leaderboard(_ context.Context, _ int) ([]store.Profile, error) {
	return nil, nil
}

func (p *countingProfiles) writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aggregateWrites
}

type stubSnapshots struct{}

func (stubSnapshots) ListByProfile(_ context.Context, _ string) ([]store.EquitySnapshot, error) {
	return nil, nil
}

func (stubSnapshots) Latest(_ context.Context, _ string) (*store.EquitySnapshot, error) {
	return nil, nil
}

func (stubSnapshots) InsertIfDue(_ context.Context, _ store.EquitySnapshot, _ time.Duration) (bool, error) {
	return false, nil
}

type stubQuotes struct{}

func (stubQuotes) Latest(_ context.Context, symbols []string) map[string]valuation.Quote {
	out := make(map[string]valuation.Quote)
	for _, s := range symbols {
		out[s] = valuation.Quote{Symbol: s, Price: 160, AsOf: time.Now()}
	}
	return out
}

type blockingRefresher struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (r *blockingRefresher) Refresh(ctx context.Context, _ []string) error {
	r.mu.Lock()
	r.calls++
	release := r.release
	r.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *blockingRefresher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func testSessionConfig() config.SessionConfig {
	cfg := config.Default().Session
	cfg.RefreshInterval = time.Hour // ticks driven manually in tests
	cfg.SnapshotDebounce = 20 * time.Millisecond
	return cfg
}

func newTestSession(profiles *countingProfiles, feed Refresher, cfg config.SessionConfig) *Session {
	eng := engine.New(stubLedger{}, profiles, stubSnapshots{}, stubQuotes{}, risk.DefaultConfig(), nil)
	return New("p1", eng, feed, cfg, nil)
}

func TestStart_PublishesInitialState(t *testing.T) {
	s := newTestSession(&countingProfiles{}, &blockingRefresher{}, testSessionConfig())
	require.NoError(t, s.Start())
	defer s.Close()

	state := s.State()
	require.NotNil(t, state)
	assert.Equal(t, "p1", state.ProfileID)
	assert.InDelta(t, 101000, state.Summary.TotalEquity, 1e-9)
}

func TestTick_SingleFlight(t *testing.T) {
	refresher := &blockingRefresher{release: make(chan struct{})}
	s := newTestSession(&countingProfiles{}, refresher, testSessionConfig())

	// tick directly, without Start, so the first refresh blocks on the
	// release channel while further ticks arrive.
	s.tick()

	deadline := time.After(time.Second)
	for refresher.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first tick never reached the refresher")
		case <-time.After(time.Millisecond):
		}
	}

	s.tick()
	s.tick()
	assert.Equal(t, 1, refresher.callCount(), "overlapping ticks must be dropped")

	close(refresher.release)
	s.Close()
}

func TestPublish_DebouncesFlush(t *testing.T) {
	profiles := &countingProfiles{}
	s := newTestSession(profiles, &blockingRefresher{}, testSessionConfig())
	defer s.Close()

	// Three rapid recomputations re-arm the debounce timer each time;
	// only one flush should land.
	for i := 0; i < 3; i++ {
		_, err := s.RecomputeNow(context.Background())
		require.NoError(t, err)
	}

	deadline := time.After(time.Second)
	for profiles.writes() == 0 {
		select {
		case <-deadline:
			t.Fatal("debounced flush never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Allow a would-be second flush to fire if debouncing were broken.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, profiles.writes())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := newTestSession(&countingProfiles{}, &blockingRefresher{}, testSessionConfig())
	defer s.Close()

	var mu sync.Mutex
	var seen int
	unsubscribe := s.Subscribe(func(_ *engine.State) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	_, err := s.RecomputeNow(context.Background())
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, 1, seen)
	mu.Unlock()

	unsubscribe()
	_, err = s.RecomputeNow(context.Background())
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, 1, seen, "unsubscribed callback must not fire")
	mu.Unlock()
}

func TestClose_SuppressesPendingFlush(t *testing.T) {
	profiles := &countingProfiles{}
	cfg := testSessionConfig()
	cfg.SnapshotDebounce = 50 * time.Millisecond
	s := newTestSession(profiles, &blockingRefresher{}, cfg)

	_, err := s.RecomputeNow(context.Background())
	require.NoError(t, err)

	s.Close()
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, profiles.writes(), "flush armed before Close must not fire after it")
}

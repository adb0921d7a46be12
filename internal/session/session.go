package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantclub/paperledger/internal/config"
	"github.com/quantclub/paperledger/internal/engine"
	"github.com/quantclub/paperledger/internal/metrics"
)

// Refresher owns the quote map for a session. prices.Feed satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, symbols []string) error
}

// Session owns all recurring work for one profile: the price refresh
// cadence, recomputation, and the debounced snapshot/score persistence.
// One session is the single writer for its profile's derived state.
type Session struct {
	profileID string
	engine    *engine.Engine
	feed      Refresher
	cfg       config.SessionConfig
	metrics   *metrics.Registry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	inFlight    bool
	state       *engine.State
	flushTimer  *time.Timer
	subscribers map[int]func(*engine.State)
	nextSubID   int
}

// New creates a session for one profile. Call Start to begin the
// refresh cadence and Close to tear everything down.
func New(profileID string, eng *engine.Engine, feed Refresher, cfg config.SessionConfig, reg *metrics.Registry) *Session {
	if reg == nil {
		reg = metrics.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		profileID:   profileID,
		engine:      eng,
		feed:        feed,
		cfg:         cfg,
		metrics:     reg,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[int]func(*engine.State)),
	}
}

// Start performs an initial synchronous recomputation, then runs the
// refresh ticker until Close.
func (s *Session) Start() error {
	if err := s.refreshAndRecompute(s.ctx); err != nil {
		return fmt.Errorf("initial recomputation failed: %w", err)
	}

	s.wg.Add(1)
	go s.run()

	log.Info().Str("profile", s.profileID).
		Dur("refresh_interval", s.cfg.RefreshInterval).
		Msg("Session started")
	return nil
}

func (s *Session) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick triggers one refresh cycle. A tick that fires while a previous
// fetch is still outstanding is dropped, not queued.
func (s *Session) tick() {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.metrics.RefreshSkipped.Inc()
		log.Debug().Str("profile", s.profileID).Msg("Refresh tick dropped, fetch in flight")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.inFlight = false
			s.mu.Unlock()
		}()

		if err := s.refreshAndRecompute(s.ctx); err != nil && s.ctx.Err() == nil {
			log.Warn().Err(err).Str("profile", s.profileID).Msg("Refresh cycle failed")
		}
	}()
}

// RecomputeNow re-derives state synchronously, for callers reacting to
// a new trade landing in the ledger.
func (s *Session) RecomputeNow(ctx context.Context) (*engine.State, error) {
	state, err := s.engine.Compute(ctx, s.profileID)
	if err != nil {
		return nil, err
	}
	s.publish(state)
	return state, nil
}

// refreshAndRecompute fetches fresh prices for the held symbols and
// rebuilds state. A failed fetch still recomputes against the retained
// quote map.
func (s *Session) refreshAndRecompute(ctx context.Context) error {
	start := time.Now()

	symbols := s.heldSymbols(ctx)
	if err := s.feed.Refresh(ctx, symbols); err != nil {
		s.metrics.RefreshTotal.WithLabelValues("error").Inc()
	} else {
		s.metrics.RefreshTotal.WithLabelValues("success").Inc()
	}
	s.metrics.RefreshDuration.Observe(time.Since(start).Seconds())

	state, err := s.engine.Compute(ctx, s.profileID)
	if err != nil {
		return err
	}

	// A fetch resolving after teardown must not publish or persist.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.publish(state)
	return nil
}

// heldSymbols derives the symbol set to refresh: the current book if
// one exists, otherwise a fresh replay.
func (s *Session) heldSymbols(ctx context.Context) []string {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != nil {
		return state.Symbols()
	}

	fresh, err := s.engine.Compute(ctx, s.profileID)
	if err != nil {
		return nil
	}
	return fresh.Symbols()
}

// publish swaps in the new immutable state, notifies subscribers, and
// arms the debounced persistence flush.
func (s *Session) publish(state *engine.State) {
	s.mu.Lock()
	s.state = state
	subs := make([]func(*engine.State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}

	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	s.flushTimer = time.AfterFunc(s.cfg.SnapshotDebounce, s.flush)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// flush persists the quiesced state: profile aggregates always, the
// equity snapshot once per sampling window, the score on drift or
// staleness.
func (s *Session) flush() {
	if s.ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == nil {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	if err := s.engine.PersistAggregates(ctx, state); err != nil {
		log.Warn().Err(err).Str("profile", s.profileID).Msg("Failed to persist profile aggregates")
	}

	written, err := s.engine.PersistSnapshotIfDue(ctx, state, s.cfg.SnapshotWindow)
	if err != nil {
		log.Warn().Err(err).Str("profile", s.profileID).Msg("Failed to persist equity snapshot")
	} else if written {
		log.Debug().Str("profile", s.profileID).Float64("equity", state.Summary.TotalEquity).Msg("Equity snapshot written")
	}

	if _, err := s.engine.PersistScoreIfDrifted(ctx, state, s.cfg.ScoreDriftThreshold, s.cfg.ScoreStaleAfter); err != nil {
		log.Warn().Err(err).Str("profile", s.profileID).Msg("Failed to persist competition score")
	}
}

// State returns the most recently published state, or nil before the
// first recomputation.
func (s *Session) State() *engine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a callback invoked with every newly published
// state and returns a function that removes it. Callbacks run on the
// publishing goroutine and must be quick.
func (s *Session) Subscribe(fn func(*engine.State)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Close cancels all timers and waits for in-flight work to drain.
// Results of fetches still resolving are discarded.
func (s *Session) Close() {
	s.cancel()

	s.mu.Lock()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	s.mu.Unlock()

	s.wg.Wait()
	log.Info().Str("profile", s.profileID).Msg("Session closed")
}

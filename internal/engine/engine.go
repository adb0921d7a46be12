package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantclub/paperledger/internal/domain/ledger"
	"github.com/quantclub/paperledger/internal/domain/position"
	"github.com/quantclub/paperledger/internal/domain/risk"
	"github.com/quantclub/paperledger/internal/domain/score"
	"github.com/quantclub/paperledger/internal/domain/valuation"
	"github.com/quantclub/paperledger/internal/metrics"
	"github.com/quantclub/paperledger/internal/store"
)

// QuoteSource supplies the latest known quotes for a symbol set.
// prices.Feed satisfies it.
type QuoteSource interface {
	Latest(ctx context.Context, symbols []string) map[string]valuation.Quote
}

// State is one immutable snapshot of the full derived picture for a
// profile. Every recomputation builds a fresh State; nothing mutates a
// published one, so a slow price fetch resolving late can never tear
// newer ledger data.
type State struct {
	ProfileID      string                    `json:"profile_id"`
	SocietyName    string                    `json:"society_name"`
	InitialCapital float64                   `json:"initial_capital"`
	ComputedAt     time.Time                 `json:"computed_at"`
	RealizedPnL    float64                   `json:"realized_pnl"`
	Summary        valuation.Summary         `json:"summary"`
	Positions      []valuation.PositionValue `json:"positions"`
	Risk           risk.Metrics              `json:"risk"`
	Score          score.Score               `json:"score"`
	TradeCount     int                       `json:"trade_count"`
	SkippedRows    int                       `json:"skipped_rows"`
	UniqueSymbols  int                       `json:"unique_symbols"`
}

// Engine derives portfolio state for a profile from the trade ledger,
// the quote source and the snapshot history. It owns no timers; the
// session scheduler drives it.
type Engine struct {
	ledger    store.TradeLedger
	profiles  store.ProfileRepo
	snapshots store.SnapshotRepo
	quotes    QuoteSource
	riskCfg   risk.Config
	metrics   *metrics.Registry
}

// New creates an engine over the given collaborators.
func New(tl store.TradeLedger, profiles store.ProfileRepo, snapshots store.SnapshotRepo, quotes QuoteSource, riskCfg risk.Config, reg *metrics.Registry) *Engine {
	if reg == nil {
		reg = metrics.Default()
	}
	return &Engine{
		ledger:    tl,
		profiles:  profiles,
		snapshots: snapshots,
		quotes:    quotes,
		riskCfg:   riskCfg,
		metrics:   reg,
	}
}

// Compute replays the full ledger and derives valuation, risk and
// competition score for one profile. State is always re-derived from
// the complete ledger, never patched incrementally, so eventually
// consistent ledger reads stay safe.
func (e *Engine) Compute(ctx context.Context, profileID string) (*State, error) {
	profile, err := e.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("profile not found: %s", profileID)
	}

	trades, err := e.ledger.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to read trade ledger: %w", err)
	}

	reconciled := position.Reconcile(profile.InitialCapital, trades)

	symbols := make([]string, 0, len(reconciled.Positions))
	for symbol := range reconciled.Positions {
		symbols = append(symbols, symbol)
	}

	quotes := e.quotes.Latest(ctx, symbols)
	summary, positions := valuation.Value(reconciled.Positions, reconciled.CashBalance, profile.InitialCapital, quotes)

	snapshots, err := e.snapshots.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot history: %w", err)
	}

	riskMetrics := risk.Calculate(toRiskSeries(snapshots), summary.TotalEquity, e.riskCfg)

	now := time.Now()
	competitionScore := score.Calculate(score.Inputs{
		TotalReturnPct: summary.TotalReturnPct,
		SharpeRatio:    riskMetrics.SharpeRatio,
		MaxDrawdownPct: riskMetrics.MaxDrawdownPct,
		VolatilityPct:  riskMetrics.VolatilityPct,
		TradeTimes:     tradeTimes(trades),
		UniqueSymbols:  uniqueSymbols(trades),
		Snapshots:      toScoreSeries(snapshots),
		Now:            now,
	})

	e.metrics.ComputeTotal.Inc()
	e.metrics.PositionCount.Set(float64(summary.PositionCount))
	e.metrics.StalePositions.Set(float64(summary.StaleCount))

	log.Debug().
		Str("profile", profileID).
		Float64("equity", summary.TotalEquity).
		Int("positions", summary.PositionCount).
		Int("score", competitionScore.TotalScore).
		Msg("Recomputed portfolio state")

	return &State{
		ProfileID:      profileID,
		SocietyName:    profile.SocietyName,
		InitialCapital: profile.InitialCapital,
		ComputedAt:     now,
		RealizedPnL:    reconciled.RealizedPnL,
		Summary:        summary,
		Positions:      positions,
		Risk:           riskMetrics,
		Score:          competitionScore,
		TradeCount:     reconciled.TradeCount,
		SkippedRows:    reconciled.SkippedRows,
		UniqueSymbols:  uniqueSymbols(trades),
	}, nil
}

// Symbols returns the symbols currently held in the state's book.
func (s *State) Symbols() []string {
	out := make([]string, 0, len(s.Positions))
	for _, p := range s.Positions {
		out = append(out, p.Symbol)
	}
	return out
}

// CanPlace checks an order against the current state: buys must fit
// within cash, and sells that open or extend a short must keep total
// short exposure within maxShortExposure times equity. This is the
// precondition the order-placement collaborator consults before any
// ledger write.
func (e *Engine) CanPlace(state *State, side ledger.Side, symbol string, qty, price, maxShortExposure float64) error {
	if qty <= 0 || price <= 0 {
		return fmt.Errorf("quantity and price must be positive")
	}
	notional := qty * price

	switch side {
	case ledger.SideBuy:
		if notional > state.Summary.CashBalance {
			return fmt.Errorf("insufficient cash: need %.2f, have %.2f", notional, state.Summary.CashBalance)
		}
		return nil

	case ledger.SideSell:
		held := 0.0
		for _, p := range state.Positions {
			if p.Symbol == symbol {
				held = p.Quantity
				break
			}
		}
		shorted := qty - math.Max(held, 0)
		if shorted <= 0 {
			// Pure reduction of an existing long.
			return nil
		}

		exposure := shorted * price
		for _, p := range state.Positions {
			if p.Quantity < 0 {
				exposure += math.Abs(p.MarketValue)
			}
		}

		capacity := state.Summary.TotalEquity * maxShortExposure
		if exposure > capacity {
			return fmt.Errorf("short exposure %.2f exceeds margin capacity %.2f", exposure, capacity)
		}
		return nil

	default:
		return fmt.Errorf("unknown trade side: %q", side)
	}
}

// PersistAggregates writes the valuation fields back to the profile row.
func (e *Engine) PersistAggregates(ctx context.Context, state *State) error {
	return e.profiles.UpdateAggregates(ctx, state.ProfileID, store.ProfileAggregates{
		TotalEquity: state.Summary.TotalEquity,
		RealizedPnL: state.RealizedPnL,
		CashBalance: state.Summary.CashBalance,
	})
}

// PersistSnapshotIfDue appends an equity snapshot unless one already
// exists within the sampling window. The period return is measured
// against the previous snapshot's equity.
func (e *Engine) PersistSnapshotIfDue(ctx context.Context, state *State, window time.Duration) (bool, error) {
	var periodReturn float64
	if prev, err := e.snapshots.Latest(ctx, state.ProfileID); err != nil {
		return false, fmt.Errorf("failed to read previous snapshot: %w", err)
	} else if prev != nil && prev.TotalEquity > 0 {
		periodReturn = (state.Summary.TotalEquity - prev.TotalEquity) / prev.TotalEquity
	}

	written, err := e.snapshots.InsertIfDue(ctx, store.EquitySnapshot{
		ProfileID:   state.ProfileID,
		Timestamp:   state.ComputedAt,
		TotalEquity: state.Summary.TotalEquity,
		CashBalance: state.Summary.CashBalance,
		TotalPnL:    state.Summary.TotalPnL,
		DailyReturn: periodReturn,
	}, window)
	if err != nil {
		e.metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return false, err
	}

	if written {
		e.metrics.SnapshotWrites.WithLabelValues("written").Inc()
	} else {
		e.metrics.SnapshotWrites.WithLabelValues("skipped").Inc()
	}
	return written, nil
}

// PersistScoreIfDrifted writes the competition score when it moved by
// more than driftThreshold from the stored value, or the stored value
// is older than staleAfter. Bounds write volume without letting the
// leaderboard go stale.
func (e *Engine) PersistScoreIfDrifted(ctx context.Context, state *State, driftThreshold float64, staleAfter time.Duration) (bool, error) {
	profile, err := e.profiles.Get(ctx, state.ProfileID)
	if err != nil {
		return false, fmt.Errorf("failed to load profile for score check: %w", err)
	}
	if profile == nil {
		return false, fmt.Errorf("profile not found: %s", state.ProfileID)
	}

	drift := math.Abs(float64(state.Score.TotalScore - profile.CompetitionScore))
	stale := state.ComputedAt.Sub(profile.ScoreLastUpdated) > staleAfter

	if drift <= driftThreshold && !stale {
		e.metrics.ScoreWrites.WithLabelValues("skipped").Inc()
		return false, nil
	}

	err = e.profiles.UpdateScore(ctx, state.ProfileID, store.ScoreUpdate{
		CompetitionScore: state.Score.TotalScore,
		ReturnScore:      state.Score.ReturnScore,
		RiskScore:        state.Score.RiskScore,
		ConsistencyScore: state.Score.ConsistencyScore,
		ActivityScore:    state.Score.ActivityScore,
		UpdatedAt:        state.ComputedAt,
	})
	if err != nil {
		e.metrics.ScoreWrites.WithLabelValues("error").Inc()
		return false, err
	}

	e.metrics.ScoreWrites.WithLabelValues("written").Inc()
	return true, nil
}

func toRiskSeries(snapshots []store.EquitySnapshot) []risk.Point {
	series := make([]risk.Point, len(snapshots))
	for i, s := range snapshots {
		series[i] = risk.Point{Timestamp: s.Timestamp, Equity: s.TotalEquity}
	}
	return series
}

func toScoreSeries(snapshots []store.EquitySnapshot) []score.SnapshotPoint {
	series := make([]score.SnapshotPoint, len(snapshots))
	for i, s := range snapshots {
		series[i] = score.SnapshotPoint{Timestamp: s.Timestamp, PeriodReturn: s.DailyReturn}
	}
	return series
}

func tradeTimes(trades []ledger.TradeEvent) []time.Time {
	times := make([]time.Time, 0, len(trades))
	for _, t := range trades {
		if !t.Timestamp.IsZero() {
			times = append(times, t.Timestamp)
		}
	}
	return times
}

func uniqueSymbols(trades []ledger.TradeEvent) int {
	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if ev, err := ledger.Normalize(t); err == nil {
			seen[ev.Symbol] = struct{}{}
		}
	}
	return len(seen)
}

package store

import (
	"context"
	"time"

	"github.com/quantclub/paperledger/internal/domain/ledger"
)

// Profile is the per-participant aggregate row. InitialCapital and
// SocietyName are authored elsewhere; the remaining fields are written
// back by the engine.
type Profile struct {
	ID               string    `json:"id" db:"id"`
	SocietyName      string    `json:"society_name" db:"society_name"`
	InitialCapital   float64   `json:"initial_capital" db:"initial_capital"`
	TotalEquity      float64   `json:"total_equity" db:"total_equity"`
	RealizedPnL      float64   `json:"realized_pnl" db:"realized_pnl"`
	CashBalance      float64   `json:"cash_balance" db:"cash_balance"`
	CompetitionScore int       `json:"competition_score" db:"competition_score"`
	ReturnScore      int       `json:"return_score" db:"return_score"`
	RiskScore        int       `json:"risk_score" db:"risk_score"`
	ConsistencyScore int       `json:"consistency_score" db:"consistency_score"`
	ActivityScore    int       `json:"activity_score" db:"activity_score"`
	ScoreLastUpdated time.Time `json:"score_last_updated" db:"score_last_updated"`
}

// EquitySnapshot is one append-only equity observation, at most one
// per sampling window per profile.
type EquitySnapshot struct {
	ID          int64     `json:"id" db:"id"`
	ProfileID   string    `json:"profile_id" db:"profile_id"`
	Timestamp   time.Time `json:"ts" db:"ts"`
	TotalEquity float64   `json:"total_equity" db:"total_equity"`
	CashBalance float64   `json:"cash_balance" db:"cash_balance"`
	TotalPnL    float64   `json:"total_pnl" db:"total_pnl"`
	DailyReturn float64   `json:"daily_return" db:"daily_return"`
}

// ProfileAggregates are the valuation fields the engine writes back
// after each recomputation.
type ProfileAggregates struct {
	TotalEquity float64
	RealizedPnL float64
	CashBalance float64
}

// ScoreUpdate is the persisted form of a competition score.
type ScoreUpdate struct {
	CompetitionScore int
	ReturnScore      int
	RiskScore        int
	ConsistencyScore int
	ActivityScore    int
	UpdatedAt        time.Time
}

// TradeLedger reads the append-only trade event store. Rows come back
// ordered ascending by placement time; the ledger is never written
// through this interface.
type TradeLedger interface {
	ListByProfile(ctx context.Context, profileID string) ([]ledger.TradeEvent, error)
}

// ProfileRepo reads and writes per-participant aggregates.
type ProfileRepo interface {
	Get(ctx context.Context, id string) (*Profile, error)
	UpdateAggregates(ctx context.Context, id string, agg ProfileAggregates) error
	UpdateScore(ctx context.Context, id string, update ScoreUpdate) error
	Leaderboard(ctx context.Context, limit int) ([]Profile, error)
}

// SnapshotRepo manages the append-only equity snapshot series.
type SnapshotRepo interface {
	ListByProfile(ctx context.Context, profileID string) ([]EquitySnapshot, error)

	// Latest returns the most recent snapshot for a profile, or nil
	// when none exists.
	Latest(ctx context.Context, profileID string) (*EquitySnapshot, error)

	// InsertIfDue appends a snapshot unless one already exists within
	// the sampling window ending at snap.Timestamp. It reports whether
	// a row was written.
	InsertIfDue(ctx context.Context, snap EquitySnapshot, window time.Duration) (bool, error)
}

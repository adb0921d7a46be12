package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantclub/paperledger/internal/store"
)

// profilesRepo implements store.ProfileRepo for PostgreSQL
type profilesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewProfileRepo creates a PostgreSQL-backed profile repository.
func NewProfileRepo(db *sqlx.DB, timeout time.Duration) store.ProfileRepo {
	return &profilesRepo{
		db:      db,
		timeout: timeout,
	}
}

// Get retrieves a profile by ID, or nil when it does not exist.
func (r *profilesRepo) Get(ctx context.Context, id string) (*store.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, society_name, initial_capital, total_equity, realized_pnl,
		       cash_balance, competition_score, return_score, risk_score,
		       consistency_score, activity_score, score_last_updated
		FROM profiles
		WHERE id = $1`

	var profile store.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}

	return &profile, nil
}

// UpdateAggregates writes the valuation fields back after a recomputation.
func (r *profilesRepo) UpdateAggregates(ctx context.Context, id string, agg store.ProfileAggregates) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE profiles
		SET total_equity = $2, realized_pnl = $3, cash_balance = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, agg.TotalEquity, agg.RealizedPnL, agg.CashBalance)
	if err != nil {
		return fmt.Errorf("failed to update aggregates for profile %s: %w", id, err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}

	return nil
}

// UpdateScore persists a competition score with its sub-scores.
func (r *profilesRepo) UpdateScore(ctx context.Context, id string, update store.ScoreUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE profiles
		SET competition_score = $2, return_score = $3, risk_score = $4,
		    consistency_score = $5, activity_score = $6, score_last_updated = $7
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id,
		update.CompetitionScore, update.ReturnScore, update.RiskScore,
		update.ConsistencyScore, update.ActivityScore, update.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update score for profile %s: %w", id, err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}

	return nil
}

// Leaderboard returns profiles ranked by competition score.
func (r *profilesRepo) Leaderboard(ctx context.Context, limit int) ([]store.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, society_name, initial_capital, total_equity, realized_pnl,
		       cash_balance, competition_score, return_score, risk_score,
		       consistency_score, activity_score, score_last_updated
		FROM profiles
		ORDER BY competition_score DESC, total_equity DESC
		LIMIT $1`

	var profiles []store.Profile
	if err := r.db.SelectContext(ctx, &profiles, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}

	return profiles, nil
}

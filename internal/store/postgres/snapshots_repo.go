package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/quantclub/paperledger/internal/store"
)

// snapshotsRepo implements store.SnapshotRepo for PostgreSQL
type snapshotsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotRepo creates a PostgreSQL-backed equity snapshot repository.
func NewSnapshotRepo(db *sqlx.DB, timeout time.Duration) store.SnapshotRepo {
	return &snapshotsRepo{
		db:      db,
		timeout: timeout,
	}
}

// ListByProfile retrieves the full snapshot series for a profile,
// ordered ascending for risk analytics.
func (r *snapshotsRepo) ListByProfile(ctx context.Context, profileID string) ([]store.EquitySnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, profile_id, ts, total_equity, cash_balance, total_pnl, daily_return
		FROM equity_snapshots
		WHERE profile_id = $1
		ORDER BY ts ASC`

	var snapshots []store.EquitySnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, profileID); err != nil {
		return nil, fmt.Errorf("failed to query snapshots for profile %s: %w", profileID, err)
	}

	return snapshots, nil
}

// Latest returns the most recent snapshot for a profile, or nil.
func (r *snapshotsRepo) Latest(ctx context.Context, profileID string) (*store.EquitySnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, profile_id, ts, total_equity, cash_balance, total_pnl, daily_return
		FROM equity_snapshots
		WHERE profile_id = $1
		ORDER BY ts DESC
		LIMIT 1`

	var snap store.EquitySnapshot
	if err := r.db.GetContext(ctx, &snap, query, profileID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot for profile %s: %w", profileID, err)
	}

	return &snap, nil
}

// InsertIfDue appends a snapshot unless one already exists within the
// sampling window ending at snap.Timestamp. The existence check plus a
// unique index on (profile_id, window bucket) keeps the series free of
// duplicates even under concurrent writers.
func (r *snapshotsRepo) InsertIfDue(ctx context.Context, snap store.EquitySnapshot, window time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	checkQuery := `
		SELECT EXISTS (
			SELECT 1 FROM equity_snapshots
			WHERE profile_id = $1 AND ts > $2
		)`

	windowStart := snap.Timestamp.Add(-window)
	if err := r.db.GetContext(ctx, &exists, checkQuery, snap.ProfileID, windowStart); err != nil {
		return false, fmt.Errorf("failed to check snapshot window: %w", err)
	}
	if exists {
		return false, nil
	}

	insertQuery := `
		INSERT INTO equity_snapshots (profile_id, ts, total_equity, cash_balance, total_pnl, daily_return)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, insertQuery,
		snap.ProfileID, snap.Timestamp, snap.TotalEquity,
		snap.CashBalance, snap.TotalPnL, snap.DailyReturn)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// Another writer landed in the same window first.
			return false, nil
		}
		return false, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return true, nil
}

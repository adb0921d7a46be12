package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantclub/paperledger/internal/domain/ledger"
	"github.com/quantclub/paperledger/internal/store"
)

// ledgerRepo implements store.TradeLedger for PostgreSQL. The trades
// table is append-only; this repository only ever reads it.
type ledgerRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTradeLedger creates a PostgreSQL-backed trade ledger reader.
func NewTradeLedger(db *sqlx.DB, timeout time.Duration) store.TradeLedger {
	return &ledgerRepo{
		db:      db,
		timeout: timeout,
	}
}

// ListByProfile retrieves all trade events for a profile, oldest first.
func (r *ledgerRepo) ListByProfile(ctx context.Context, profileID string) ([]ledger.TradeEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, profile_id, symbol, side, quantity, price, notional, placed_at
		FROM trades
		WHERE profile_id = $1
		ORDER BY placed_at ASC`

	rows, err := r.db.QueryxContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for profile %s: %w", profileID, err)
	}
	defer rows.Close()

	var trades []ledger.TradeEvent
	for rows.Next() {
		var (
			ev       ledger.TradeEvent
			notional sql.NullFloat64
		)
		if err := rows.Scan(&ev.ID, &ev.ProfileID, &ev.Symbol, &ev.Side,
			&ev.Quantity, &ev.Price, &notional, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		// Notional is optional in the schema; Normalize defaults it later.
		if notional.Valid {
			ev.Notional = notional.Float64
		}
		trades = append(trades, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}

	return trades, nil
}

package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestLedgerListByProfile(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTradeLedger(db, 5*time.Second)

	placed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "profile_id", "symbol", "side", "quantity", "price", "notional", "placed_at"}).
		AddRow("t1", "p1", "AAPL", "buy", 100.0, 150.0, 15000.0, placed).
		AddRow("t2", "p1", "MSFT", "sell", 10.0, 400.0, nil, placed.Add(time.Minute))

	mock.ExpectQuery(regexp.QuoteMeta("FROM trades")).
		WithArgs("p1").
		WillReturnRows(rows)

	trades, err := repo.ListByProfile(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "AAPL", trades[0].Symbol)
	assert.Equal(t, 15000.0, trades[0].Notional)
	assert.Equal(t, "MSFT", trades[1].Symbol)
	assert.Zero(t, trades[1].Notional, "NULL notional left for Normalize to default")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerListByProfile_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTradeLedger(db, 5*time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("FROM trades")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "profile_id", "symbol", "side", "quantity", "price", "notional", "placed_at"}))

	trades, err := repo.ListByProfile(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantclub/paperledger/internal/store"
)

var profileColumns = []string{
	"id", "society_name", "initial_capital", "total_equity", "realized_pnl",
	"cash_balance", "competition_score", "return_score", "risk_score",
	"consistency_score", "activity_score", "score_last_updated",
}

func TestProfileGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepo(db, 5*time.Second)

	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(profileColumns).
			AddRow("p1", "Quant Society", 100000.0, 101000.0, 400.0,
				85000.0, 72, 80, 62, 75, 37, updated))

	profile, err := repo.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, profile)

	assert.Equal(t, "Quant Society", profile.SocietyName)
	assert.Equal(t, 100000.0, profile.InitialCapital)
	assert.Equal(t, 72, profile.CompetitionScore)
	assert.True(t, profile.ScoreLastUpdated.Equal(updated))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileGet_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepo(db, 5*time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	profile, err := repo.Get(context.Background(), "missing")
	require.NoError(t, err, "missing profile is not an error")
	assert.Nil(t, profile)
}

func TestProfileUpdateAggregates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepo(db, 5*time.Second)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles")).
		WithArgs("p1", 101000.0, 400.0, 85000.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateAggregates(context.Background(), "p1", store.ProfileAggregates{
		TotalEquity: 101000, RealizedPnL: 400, CashBalance: 85000,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileUpdateAggregates_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepo(db, 5*time.Second)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles")).
		WithArgs("missing", 101000.0, 400.0, 85000.0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateAggregates(context.Background(), "missing", store.ProfileAggregates{
		TotalEquity: 101000, RealizedPnL: 400, CashBalance: 85000,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile not found")
}

func TestProfileUpdateScore(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepo(db, 5*time.Second)

	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles")).
		WithArgs("p1", 72, 80, 62, 75, 37, updated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateScore(context.Background(), "p1", store.ScoreUpdate{
		CompetitionScore: 72, ReturnScore: 80, RiskScore: 62,
		ConsistencyScore: 75, ActivityScore: 37, UpdatedAt: updated,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileLeaderboard(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepo(db, 5*time.Second)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY competition_score DESC, total_equity DESC")).
		WithArgs(25).
		WillReturnRows(sqlmock.NewRows(profileColumns).
			AddRow("p1", "Alpha", 100000.0, 110000.0, 0.0, 50000.0, 85, 90, 80, 75, 60, now).
			AddRow("p2", "Beta", 100000.0, 105000.0, 0.0, 60000.0, 70, 65, 72, 68, 40, now))

	profiles, err := repo.Leaderboard(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Alpha", profiles[0].SocietyName)
	assert.Equal(t, 85, profiles[0].CompetitionScore)
}

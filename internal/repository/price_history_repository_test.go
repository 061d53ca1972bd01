package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/edusys-ar/escuela-api/internal/models"
)

func newPriceHistoryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPriceHistoryRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newPriceHistoryRepoMock(t)
	defer cleanup()
	repo := NewPriceHistoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO career_price_history (career_id, amount, effective_from, created_at)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	entry := &models.PriceHistoryEntry{CareerID: 2, Amount: decimal.RequireFromString("2000.00")}
	err := repo.Append(context.Background(), db, entry)
	require.NoError(t, err)
	require.Equal(t, int64(5), entry.ID)
	require.False(t, entry.EffectiveFrom.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceHistoryRepositoryLatestAsOf(t *testing.T) {
	db, mock, cleanup := newPriceHistoryRepoMock(t)
	defer cleanup()
	repo := NewPriceHistoryRepository(db)

	instant := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "career_id", "amount", "effective_from", "created_at"}).
		AddRow(int64(9), int64(2), "1800.00", instant.AddDate(0, -1, 0), instant.AddDate(0, -1, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY effective_from DESC, created_at DESC, id DESC")).
		WithArgs(int64(2), instant).
		WillReturnRows(rows)

	entry, err := repo.LatestAsOf(context.Background(), 2, instant)
	require.NoError(t, err)
	require.Equal(t, int64(9), entry.ID)
	require.Equal(t, "1800", entry.Amount.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceHistoryRepositoryLatestAsOfMissing(t *testing.T) {
	db, mock, cleanup := newPriceHistoryRepoMock(t)
	defer cleanup()
	repo := NewPriceHistoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY effective_from DESC, created_at DESC, id DESC")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LatestAsOf(context.Background(), 2, time.Now().UTC())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

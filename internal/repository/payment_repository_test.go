package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/edusys-ar/escuela-api/internal/models"
)

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func paymentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "enrollment_id", "installment_no", "paid_at", "amount", "paid_in_advance", "status", "created_at"})
}

func TestPaymentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM payments")).
		WithArgs(int64(7), 3, models.PaymentStatusActive).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	payment := &models.Payment{
		EnrollmentID:  7,
		InstallmentNo: 3,
		PaidAt:        time.Now().UTC(),
		Amount:        decimal.RequireFromString("1500.00"),
	}
	err := repo.Create(context.Background(), payment)
	require.NoError(t, err)
	require.Equal(t, int64(42), payment.ID)
	require.Equal(t, models.PaymentStatusActive, payment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateDuplicateInstallment(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM payments")).
		WithArgs(int64(7), 3, models.PaymentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	payment := &models.Payment{EnrollmentID: 7, InstallmentNo: 3, Amount: decimal.NewFromInt(1500)}
	err := repo.Create(context.Background(), payment)
	require.ErrorIs(t, err, ErrInstallmentPaid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateConcurrentDuplicate(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM payments")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	payment := &models.Payment{EnrollmentID: 7, InstallmentNo: 3, Amount: decimal.NewFromInt(1500)}
	err := repo.Create(context.Background(), payment)
	require.ErrorIs(t, err, ErrInstallmentPaid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryVoid(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET status = $2 WHERE id = $1 AND status = $3")).
		WithArgs(int64(42), models.PaymentStatusVoided, models.PaymentStatusActive).
		WillReturnRows(paymentRows().AddRow(int64(42), int64(7), 3, now, "1500.00", false, models.PaymentStatusVoided, now))

	payment, err := repo.Void(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, payment.Voided())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryVoidAlreadyVoided(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET status = $2 WHERE id = $1 AND status = $3")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(paymentRows().AddRow(int64(42), int64(7), 3, now, "1500.00", false, models.PaymentStatusVoided, now))

	_, err := repo.Void(context.Background(), 42)
	require.ErrorIs(t, err, ErrAlreadyVoided)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryVoidMissing(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET status = $2 WHERE id = $1 AND status = $3")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Void(context.Background(), 42)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 99)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListByEnrollmentExcludesVoided(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE enrollment_id = $1 AND status = $2")).
		WithArgs(int64(7), models.PaymentStatusActive).
		WillReturnRows(paymentRows().AddRow(int64(1), int64(7), 1, now, "1500.00", false, models.PaymentStatusActive, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments WHERE enrollment_id = $1 AND status = $2")).
		WithArgs(int64(7), models.PaymentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	payments, total, err := repo.ListByEnrollment(context.Background(), 7, false, 1, 20)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edusys-ar/escuela-api/internal/models"
)

// Sentinel errors surfaced by the payment ledger. Services translate them
// into user-facing conflicts.
var (
	ErrInstallmentPaid = errors.New("installment already has an active payment")
	ErrAlreadyVoided   = errors.New("payment already voided")
)

const paymentColumns = `id, enrollment_id, installment_no, paid_at, amount, paid_in_advance, status, created_at`

// PaymentRepository stores installment payments and enforces the
// one-active-payment-per-installment invariant.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment inside a transaction. The existence check gives
// a clean conflict on the common path; the partial unique index on
// (enrollment_id, installment_no) WHERE status = 'ACTIVE' is the
// authoritative guard against concurrent duplicates.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment tx: %w", err)
	}

	const existsQuery = `SELECT 1 FROM payments
        WHERE enrollment_id = $1 AND installment_no = $2 AND status = $3 LIMIT 1`
	var exists int
	err = tx.GetContext(ctx, &exists, existsQuery, payment.EnrollmentID, payment.InstallmentNo, models.PaymentStatusActive)
	if err == nil {
		tx.Rollback() //nolint:errcheck
		return ErrInstallmentPaid
	}
	if !errors.Is(err, sql.ErrNoRows) {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("check active installment: %w", err)
	}

	payment.Status = models.PaymentStatusActive
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const insertQuery = `INSERT INTO payments (enrollment_id, installment_no, paid_at, amount, paid_in_advance, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err = tx.GetContext(ctx, &payment.ID, insertQuery,
		payment.EnrollmentID, payment.InstallmentNo, payment.PaidAt, payment.Amount,
		payment.PaidInAdvance, payment.Status, payment.CreatedAt)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		if isUniqueViolation(err) {
			return ErrInstallmentPaid
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}
	return nil
}

// Void flips an ACTIVE payment to VOIDED and returns the updated row. The
// conditional UPDATE makes the transition atomic: concurrent voids cannot
// both succeed.
func (r *PaymentRepository) Void(ctx context.Context, id int64) (*models.Payment, error) {
	const query = `UPDATE payments SET status = $2 WHERE id = $1 AND status = $3
        RETURNING ` + paymentColumns
	var payment models.Payment
	err := r.db.GetContext(ctx, &payment, query, id, models.PaymentStatusVoided, models.PaymentStatusActive)
	if err == nil {
		return &payment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("void payment: %w", err)
	}

	// Nothing updated: either the payment is missing or already voided.
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, ErrAlreadyVoided
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*models.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Delete removes a payment row permanently. Administrator-only path.
func (r *PaymentRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM payments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete payment result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByEnrollment returns payments of one enrollment ordered by
// installment number descending (latest cuota first).
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID int64, includeVoided bool, page, pageSize int) ([]models.Payment, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	where := `WHERE enrollment_id = $1`
	args := []interface{}{enrollmentID}
	if !includeVoided {
		where += ` AND status = $2`
		args = append(args, models.PaymentStatusActive)
	}

	query := fmt.Sprintf(`SELECT `+paymentColumns+` FROM payments %s
        ORDER BY installment_no DESC LIMIT %d OFFSET %d`, where, pageSize, offset)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollment payments: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM payments %s`, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollment payments: %w", err)
	}
	return payments, total, nil
}

// ListGlobal returns the admin-wide payment listing joined with the paying
// student and career, ordered by payment date then id descending.
func (r *PaymentRepository) ListGlobal(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentAdminRow, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	base := `FROM payments p
        JOIN enrollments e ON e.id = p.enrollment_id
        JOIN user_profiles pr ON pr.id = e.profile_id
        JOIN users u ON u.id = pr.user_id
        JOIN careers c ON c.id = e.career_id`
	clause := ""
	var args []interface{}
	if filter.Search != "" {
		clause = ` WHERE u.username ILIKE $1 OR pr.first_name ILIKE $1 OR pr.last_name ILIKE $1 OR pr.dni ILIKE $1 OR c.name ILIKE $1`
		args = append(args, "%"+filter.Search+"%")
	}

	query := fmt.Sprintf(`SELECT p.id, p.enrollment_id, p.installment_no, p.paid_at, p.amount, p.paid_in_advance, p.status,
        u.id AS user_id, u.username, pr.first_name, pr.last_name, pr.dni, c.id AS career_id, c.name AS career_name
        %s%s ORDER BY p.paid_at DESC, p.id DESC LIMIT %d OFFSET %d`, base, clause, pageSize, offset)
	var rows []models.PaymentAdminRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	for i := range rows {
		rows[i].Voided = rows[i].Status == models.PaymentStatusVoided
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) %s%s`, base, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return rows, total, nil
}

// ListByProfile returns every payment across all enrollments of a
// profile, for the student self-service view.
func (r *PaymentRepository) ListByProfile(ctx context.Context, profileID int64) ([]models.Payment, error) {
	const query = `SELECT p.id, p.enrollment_id, p.installment_no, p.paid_at, p.amount, p.paid_in_advance, p.status, p.created_at
        FROM payments p
        JOIN enrollments e ON e.id = p.enrollment_id
        WHERE e.profile_id = $1
        ORDER BY p.enrollment_id, p.installment_no DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, profileID); err != nil {
		return nil, fmt.Errorf("list profile payments: %w", err)
	}
	return payments, nil
}

// CountByEnrollment counts payments of any status for an enrollment. Used
// as the referential guard before enrollment deletion.
func (r *PaymentRepository) CountByEnrollment(ctx context.Context, enrollmentID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM payments WHERE enrollment_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, enrollmentID); err != nil {
		return 0, fmt.Errorf("count payments for enrollment: %w", err)
	}
	return total, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edusys-ar/escuela-api/internal/models"
)

const careerColumns = `id, name, monthly_price, duration_months, cohort_start, created_at, updated_at`

// CareerRepository handles persistence of careers and keeps the price
// history ledger in step with price mutations.
type CareerRepository struct {
	db      *sqlx.DB
	history *PriceHistoryRepository
}

// NewCareerRepository constructs the repository.
func NewCareerRepository(db *sqlx.DB, history *PriceHistoryRepository) *CareerRepository {
	return &CareerRepository{db: db, history: history}
}

// Create inserts a career and its seed price-history entry in one
// transaction; either both rows exist afterwards or neither does.
func (r *CareerRepository) Create(ctx context.Context, career *models.Career) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin career tx: %w", err)
	}

	now := time.Now().UTC()
	if career.CohortStart.IsZero() {
		career.CohortStart = now
	}
	career.CreatedAt = now
	career.UpdatedAt = now

	const insertQuery = `INSERT INTO careers (name, monthly_price, duration_months, cohort_start, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err = tx.GetContext(ctx, &career.ID, insertQuery,
		career.Name, career.MonthlyPrice, career.DurationMonths, career.CohortStart, career.CreatedAt, career.UpdatedAt)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert career: %w", err)
	}

	seed := &models.PriceHistoryEntry{
		CareerID:      career.ID,
		Amount:        career.MonthlyPrice,
		EffectiveFrom: now,
		CreatedAt:     now,
	}
	if err := r.history.Append(ctx, tx, seed); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit career: %w", err)
	}
	return nil
}

// Update persists career changes. When entry is non-nil the price changed
// and the delta entry is appended in the same transaction as the update.
func (r *CareerRepository) Update(ctx context.Context, career *models.Career, entry *models.PriceHistoryEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin career tx: %w", err)
	}

	career.UpdatedAt = time.Now().UTC()
	const updateQuery = `UPDATE careers SET name = $2, monthly_price = $3, duration_months = $4, cohort_start = $5, updated_at = $6
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery,
		career.ID, career.Name, career.MonthlyPrice, career.DurationMonths, career.CohortStart, career.UpdatedAt); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update career: %w", err)
	}

	if entry != nil {
		if err := r.history.Append(ctx, tx, entry); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit career: %w", err)
	}
	return nil
}

// FindByID returns a career by its ID.
func (r *CareerRepository) FindByID(ctx context.Context, id int64) (*models.Career, error) {
	const query = `SELECT ` + careerColumns + ` FROM careers WHERE id = $1`
	var career models.Career
	if err := r.db.GetContext(ctx, &career, query, id); err != nil {
		return nil, err
	}
	return &career, nil
}

// ExistsByName checks name uniqueness, optionally excluding one career id.
func (r *CareerRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	query := `SELECT 1 FROM careers WHERE name = $1`
	args := []interface{}{name}
	if excludeID > 0 {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	query += ` LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check career name: %w", err)
	}
	return true, nil
}

// List returns careers ordered by id with optional name search.
func (r *CareerRepository) List(ctx context.Context, filter models.CareerFilter) ([]models.Career, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	clause := ""
	var args []interface{}
	if filter.Search != "" {
		clause = ` WHERE name ILIKE $1`
		args = append(args, "%"+filter.Search+"%")
	}

	query := fmt.Sprintf(`SELECT `+careerColumns+` FROM careers%s ORDER BY id LIMIT %d OFFSET %d`, clause, pageSize, offset)
	var careers []models.Career
	if err := r.db.SelectContext(ctx, &careers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list careers: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM careers%s`, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count careers: %w", err)
	}
	return careers, total, nil
}

// Delete removes a career row.
func (r *CareerRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM careers WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete career: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete career result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

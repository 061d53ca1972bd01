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

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	const query = `SELECT id, profile_id, career_id, created_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Exists checks whether the (profile, career) pair is already enrolled.
func (r *EnrollmentRepository) Exists(ctx context.Context, profileID, careerID int64) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE profile_id = $1 AND career_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, profileID, careerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (profile_id, career_id, created_at)
        VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.GetContext(ctx, &enrollment.ID, query, enrollment.ProfileID, enrollment.CareerID, enrollment.CreatedAt); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// ListByProfile returns a profile's enrollments joined with career context,
// ordered by enrollment id, with the total count for pagination.
func (r *EnrollmentRepository) ListByProfile(ctx context.Context, profileID int64, page, pageSize int) ([]models.EnrollmentDetail, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const query = `SELECT e.id, e.profile_id, e.career_id, e.created_at,
        c.name AS career_name, c.cohort_start
        FROM enrollments e
        JOIN careers c ON c.id = e.career_id
        WHERE e.profile_id = $1
        ORDER BY e.id
        LIMIT $2 OFFSET $3`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, profileID, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM enrollments WHERE profile_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, profileID); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return details, total, nil
}

// ListAllByProfile returns every enrollment of a profile with career
// context, for the student self-service views.
func (r *EnrollmentRepository) ListAllByProfile(ctx context.Context, profileID int64) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.profile_id, e.career_id, e.created_at,
        c.name AS career_name, c.cohort_start
        FROM enrollments e
        JOIN careers c ON c.id = e.career_id
        WHERE e.profile_id = $1
        ORDER BY e.id`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, profileID); err != nil {
		return nil, fmt.Errorf("list profile enrollments: %w", err)
	}
	return details, nil
}

// CountByCareer counts enrollments referencing a career. Guard for career
// deletion.
func (r *EnrollmentRepository) CountByCareer(ctx context.Context, careerID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE career_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, careerID); err != nil {
		return 0, fmt.Errorf("count career enrollments: %w", err)
	}
	return total, nil
}

// Delete removes an enrollment row.
func (r *EnrollmentRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM enrollments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

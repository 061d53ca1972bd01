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

// UserRepository handles persistence of accounts and their profiles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by its ID.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT id, username, password_hash, created_at, updated_at FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername returns a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `SELECT id, username, password_hash, created_at, updated_at FROM users WHERE username = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindProfileByUserID returns the profile attached to a user, or
// sql.ErrNoRows when the account has none yet. Callers decide what a
// missing profile means; nothing defaults silently.
func (r *UserRepository) FindProfileByUserID(ctx context.Context, userID int64) (*models.UserProfile, error) {
	const query = `SELECT id, user_id, first_name, last_name, dni, email, role FROM user_profiles WHERE user_id = $1`
	var profile models.UserProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindProfileByID returns a profile by its own ID.
func (r *UserRepository) FindProfileByID(ctx context.Context, id int64) (*models.UserProfile, error) {
	const query = `SELECT id, user_id, first_name, last_name, dni, email, role FROM user_profiles WHERE id = $1`
	var profile models.UserProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ExistsUsername checks username uniqueness, optionally excluding a user.
func (r *UserRepository) ExistsUsername(ctx context.Context, username string, excludeID int64) (bool, error) {
	query := `SELECT 1 FROM users WHERE username = $1`
	args := []interface{}{username}
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
		return false, fmt.Errorf("check username: %w", err)
	}
	return true, nil
}

// ExistsDNI checks DNI uniqueness, optionally excluding a profile.
func (r *UserRepository) ExistsDNI(ctx context.Context, dni string, excludeProfileID int64) (bool, error) {
	query := `SELECT 1 FROM user_profiles WHERE dni = $1`
	args := []interface{}{dni}
	if excludeProfileID > 0 {
		query += ` AND id <> $2`
		args = append(args, excludeProfileID)
	}
	query += ` LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check dni: %w", err)
	}
	return true, nil
}

// Create inserts the account and its profile in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, profile *models.UserProfile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user tx: %w", err)
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	const insertUser = `INSERT INTO users (username, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4) RETURNING id`
	if err := tx.GetContext(ctx, &user.ID, insertUser, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert user: %w", err)
	}

	profile.UserID = user.ID
	const insertProfile = `INSERT INTO user_profiles (user_id, first_name, last_name, dni, email, role)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := tx.GetContext(ctx, &profile.ID, insertProfile,
		profile.UserID, profile.FirstName, profile.LastName, profile.DNI, profile.Email, profile.Role); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user: %w", err)
	}
	return nil
}

// Update changes the username and upserts the profile, transactionally.
// Passwords are never touched here.
func (r *UserRepository) Update(ctx context.Context, user *models.User, profile *models.UserProfile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user tx: %w", err)
	}

	user.UpdatedAt = time.Now().UTC()
	const updateUser = `UPDATE users SET username = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateUser, user.ID, user.Username, user.UpdatedAt); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update user: %w", err)
	}

	if profile.ID == 0 {
		const insertProfile = `INSERT INTO user_profiles (user_id, first_name, last_name, dni, email, role)
            VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
		if err := tx.GetContext(ctx, &profile.ID, insertProfile,
			user.ID, profile.FirstName, profile.LastName, profile.DNI, profile.Email, profile.Role); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert profile: %w", err)
		}
	} else {
		const updateProfile = `UPDATE user_profiles SET first_name = $2, last_name = $3, dni = $4, email = $5, role = $6 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, updateProfile,
			profile.ID, profile.FirstName, profile.LastName, profile.DNI, profile.Email, profile.Role); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("update profile: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user: %w", err)
	}
	return nil
}

// Delete removes a user and its profile in one transaction.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_profiles WHERE user_id = $1`, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete profile: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete user result: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user delete: %w", err)
	}
	return nil
}

// ListStudents returns accounts with a student profile, paginated, with
// optional search over username, names, DNI and email.
func (r *UserRepository) ListStudents(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	base := `FROM users u
        JOIN user_profiles pr ON pr.user_id = u.id`
	clause := ` WHERE pr.role = $1`
	args := []interface{}{models.RoleStudent}
	if filter.Search != "" {
		clause += ` AND (u.username ILIKE $2 OR pr.first_name ILIKE $2 OR pr.last_name ILIKE $2 OR pr.dni ILIKE $2 OR pr.email ILIKE $2)`
		args = append(args, "%"+filter.Search+"%")
	}

	query := fmt.Sprintf(`SELECT u.id, u.username, pr.first_name, pr.last_name, pr.dni, pr.email, pr.role
        %s%s ORDER BY u.id LIMIT %d OFFSET %d`, base, clause, pageSize, offset)
	var users []models.UserDetail
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) %s%s`, base, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return users, total, nil
}

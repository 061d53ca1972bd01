package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edusys-ar/escuela-api/internal/models"
)

const newsColumns = `id, title, content, image_url, author_id, created_at, updated_at`

// NewsRepository handles persistence of news articles.
type NewsRepository struct {
	db *sqlx.DB
}

// NewNewsRepository constructs the repository.
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// Create inserts a news article.
func (r *NewsRepository) Create(ctx context.Context, article *models.News) error {
	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now
	const query = `INSERT INTO news (title, content, image_url, author_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.GetContext(ctx, &article.ID, query,
		article.Title, article.Content, article.ImageURL, article.AuthorID, article.CreatedAt, article.UpdatedAt); err != nil {
		return fmt.Errorf("insert news: %w", err)
	}
	return nil
}

// FindByID returns a news article by its ID.
func (r *NewsRepository) FindByID(ctx context.Context, id int64) (*models.News, error) {
	query := fmt.Sprintf(`SELECT %s FROM news WHERE id = $1`, newsColumns)
	var article models.News
	if err := r.db.GetContext(ctx, &article, query, id); err != nil {
		return nil, err
	}
	return &article, nil
}

// Update persists title, content and image URL changes.
func (r *NewsRepository) Update(ctx context.Context, article *models.News) error {
	article.UpdatedAt = time.Now().UTC()
	const query = `UPDATE news SET title = $2, content = $3, image_url = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		article.ID, article.Title, article.Content, article.ImageURL, article.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update news: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update news result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a news article.
func (r *NewsRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete news: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete news result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns news articles newest first, paginated, with an optional
// search over title and content.
func (r *NewsRepository) List(ctx context.Context, filter models.NewsFilter) ([]models.News, int, error) {
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
	args := []interface{}{}
	if filter.Search != "" {
		clause = ` WHERE (title ILIKE $1 OR content ILIKE $1)`
		args = append(args, "%"+filter.Search+"%")
	}

	query := fmt.Sprintf(`SELECT %s FROM news%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		newsColumns, clause, pageSize, offset)
	var items []models.News
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list news: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM news%s`, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count news: %w", err)
	}
	return items, total, nil
}

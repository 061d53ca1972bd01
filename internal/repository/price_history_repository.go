package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edusys-ar/escuela-api/internal/models"
)

// PriceHistoryRepository persists the append-only price ledger per career.
type PriceHistoryRepository struct {
	db *sqlx.DB
}

// NewPriceHistoryRepository constructs the repository.
func NewPriceHistoryRepository(db *sqlx.DB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

// Append inserts a new price entry. It runs against the provided execer so
// career create/update can include it in their transaction.
func (r *PriceHistoryRepository) Append(ctx context.Context, ex sqlx.ExtContext, entry *models.PriceHistoryEntry) error {
	if entry.EffectiveFrom.IsZero() {
		entry.EffectiveFrom = time.Now().UTC()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO career_price_history (career_id, amount, effective_from, created_at)
        VALUES ($1, $2, $3, $4) RETURNING id`
	if err := sqlx.GetContext(ctx, ex, &entry.ID, query, entry.CareerID, entry.Amount, entry.EffectiveFrom, entry.CreatedAt); err != nil {
		return fmt.Errorf("append price history: %w", err)
	}
	return nil
}

// LatestAsOf returns the entry in effect at the given instant: the one with
// the greatest effective_from <= instant. Same-instant edits resolve
// last-write-wins via created_at, then id.
func (r *PriceHistoryRepository) LatestAsOf(ctx context.Context, careerID int64, instant time.Time) (*models.PriceHistoryEntry, error) {
	const query = `SELECT id, career_id, amount, effective_from, created_at
        FROM career_price_history
        WHERE career_id = $1 AND effective_from <= $2
        ORDER BY effective_from DESC, created_at DESC, id DESC
        LIMIT 1`
	var entry models.PriceHistoryEntry
	if err := r.db.GetContext(ctx, &entry, query, careerID, instant); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByCareer returns the price history of a career ordered by
// effective_from descending, with the total count for pagination.
func (r *PriceHistoryRepository) ListByCareer(ctx context.Context, careerID int64, page, pageSize int) ([]models.PriceHistoryEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const query = `SELECT id, career_id, amount, effective_from, created_at
        FROM career_price_history
        WHERE career_id = $1
        ORDER BY effective_from DESC, created_at DESC, id DESC
        LIMIT $2 OFFSET $3`
	var entries []models.PriceHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, careerID, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("list price history: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM career_price_history WHERE career_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, careerID); err != nil {
		return nil, 0, fmt.Errorf("count price history: %w", err)
	}
	return entries, total, nil
}

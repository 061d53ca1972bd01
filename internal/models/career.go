package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Career is an academic program with a monthly tuition price.
type Career struct {
	ID             int64           `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	MonthlyPrice   decimal.Decimal `db:"monthly_price" json:"monthly_price"`
	DurationMonths int             `db:"duration_months" json:"duration_months"`
	CohortStart    time.Time       `db:"cohort_start" json:"cohort_start"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// PriceHistoryEntry is one append-only price-change event for a career.
// Entries are never mutated or deleted; a price edit appends a new one.
type PriceHistoryEntry struct {
	ID            int64           `db:"id" json:"id"`
	CareerID      int64           `db:"career_id" json:"career_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	EffectiveFrom time.Time       `db:"effective_from" json:"effective_from"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// CareerFilter captures criteria for the paginated career listing.
type CareerFilter struct {
	Search   string
	Page     int
	PageSize int
}

// CreateCareerRequest is the payload for creating a career.
type CreateCareerRequest struct {
	Name           string          `json:"name" validate:"required,min=2,max=150"`
	MonthlyPrice   decimal.Decimal `json:"monthly_price"`
	DurationMonths int             `json:"duration_months" validate:"required,gt=0"`
	CohortStart    *time.Time      `json:"cohort_start"`
}

// UpdateCareerRequest is the payload for updating a career. When the
// price changes, EffectiveFrom controls since when the new price applies;
// it defaults to the moment of the edit.
type UpdateCareerRequest struct {
	Name           string          `json:"name" validate:"required,min=2,max=150"`
	MonthlyPrice   decimal.Decimal `json:"monthly_price"`
	DurationMonths int             `json:"duration_months" validate:"required,gt=0"`
	CohortStart    *time.Time      `json:"cohort_start"`
	EffectiveFrom  *time.Time      `json:"effective_from"`
}

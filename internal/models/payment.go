package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the tagged state of an installment payment. The only
// legal transition is ACTIVE -> VOIDED; a voided payment never comes back.
type PaymentStatus string

const (
	PaymentStatusActive PaymentStatus = "ACTIVE"
	PaymentStatusVoided PaymentStatus = "VOIDED"
)

// Payment records one paid installment of an enrollment. The amount is
// fixed at creation from the price history and never recomputed, even if
// the history is amended later.
type Payment struct {
	ID            int64           `db:"id" json:"id"`
	EnrollmentID  int64           `db:"enrollment_id" json:"enrollment_id"`
	InstallmentNo int             `db:"installment_no" json:"installment_no"`
	PaidAt        time.Time       `db:"paid_at" json:"paid_at"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaidInAdvance bool            `db:"paid_in_advance" json:"paid_in_advance"`
	Status        PaymentStatus   `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Voided reports whether the payment has been soft-cancelled.
func (p Payment) Voided() bool {
	return p.Status == PaymentStatusVoided
}

// PaymentView is the wire representation of a payment.
type PaymentView struct {
	ID            int64           `json:"id"`
	EnrollmentID  int64           `json:"enrollment_id"`
	InstallmentNo int             `json:"installment_no"`
	PaidAt        time.Time       `json:"paid_at"`
	Amount        decimal.Decimal `json:"amount"`
	PaidInAdvance bool            `json:"paid_in_advance"`
	Voided        bool            `json:"voided"`
}

// NewPaymentView maps a payment to its wire representation.
func NewPaymentView(p Payment) PaymentView {
	return PaymentView{
		ID:            p.ID,
		EnrollmentID:  p.EnrollmentID,
		InstallmentNo: p.InstallmentNo,
		PaidAt:        p.PaidAt,
		Amount:        p.Amount,
		PaidInAdvance: p.PaidInAdvance,
		Voided:        p.Voided(),
	}
}

// PaymentAdminRow is the global admin listing row joining payment,
// student and career data.
type PaymentAdminRow struct {
	ID            int64           `db:"id" json:"id"`
	EnrollmentID  int64           `db:"enrollment_id" json:"enrollment_id"`
	InstallmentNo int             `db:"installment_no" json:"installment_no"`
	PaidAt        time.Time       `db:"paid_at" json:"paid_at"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaidInAdvance bool            `db:"paid_in_advance" json:"paid_in_advance"`
	Status        PaymentStatus   `db:"status" json:"-"`
	Voided        bool            `db:"-" json:"voided"`
	UserID        int64           `db:"user_id" json:"user_id"`
	Username      string          `db:"username" json:"username"`
	FirstName     string          `db:"first_name" json:"first_name"`
	LastName      string          `db:"last_name" json:"last_name"`
	DNI           string          `db:"dni" json:"dni"`
	CareerID      int64           `db:"career_id" json:"career_id"`
	CareerName    string          `db:"career_name" json:"career_name"`
}

// PaymentFilter captures criteria for the global admin payment listing.
type PaymentFilter struct {
	Search   string
	Page     int
	PageSize int
}

// CreatePaymentRequest is the payload for registering an installment
// payment. PaidAt is optional; the server clock is used when absent.
type CreatePaymentRequest struct {
	EnrollmentID  int64      `json:"enrollment_id" validate:"required,gt=0"`
	InstallmentNo int        `json:"installment_no" validate:"required,gt=0"`
	PaidAt        *time.Time `json:"paid_at"`
	PaidInAdvance bool       `json:"paid_in_advance"`
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/edusys-ar/escuela-api/internal/models"
	"github.com/edusys-ar/escuela-api/internal/repository"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
)

type billingPaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	Void(ctx context.Context, id int64) (*models.Payment, error)
	FindByID(ctx context.Context, id int64) (*models.Payment, error)
	Delete(ctx context.Context, id int64) error
	ListByEnrollment(ctx context.Context, enrollmentID int64, includeVoided bool, page, pageSize int) ([]models.Payment, int, error)
	ListGlobal(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentAdminRow, int, error)
}

type billingPriceHistoryRepository interface {
	LatestAsOf(ctx context.Context, careerID int64, instant time.Time) (*models.PriceHistoryEntry, error)
	ListByCareer(ctx context.Context, careerID int64, page, pageSize int) ([]models.PriceHistoryEntry, int, error)
}

type billingEnrollmentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Enrollment, error)
}

type billingCareerRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Career, error)
}

// BillingService implements the payment ledger: registering installment
// payments at the historically correct price, voiding them, and the
// various listings built on top.
type BillingService struct {
	payments    billingPaymentRepository
	history     billingPriceHistoryRepository
	enrollments billingEnrollmentRepository
	careers     billingCareerRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewBillingService constructs a BillingService instance.
func NewBillingService(
	payments billingPaymentRepository,
	history billingPriceHistoryRepository,
	enrollments billingEnrollmentRepository,
	careers billingCareerRepository,
	validate *validator.Validate,
	logger *zap.Logger,
) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BillingService{
		payments:    payments,
		history:     history,
		enrollments: enrollments,
		careers:     careers,
		validator:   validate,
		logger:      logger,
	}
}

// PriceAsOf resolves the monthly price of a career at the given instant:
// the history entry with the greatest effective_from not after the
// instant, falling back to the career's current price when the history
// has no entry that early.
func (s *BillingService) PriceAsOf(ctx context.Context, careerID int64, instant time.Time) (decimal.Decimal, error) {
	entry, err := s.history.LatestAsOf(ctx, careerID, instant)
	if err == nil {
		return entry.Amount, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve price history")
	}

	career, err := s.careers.FindByID(ctx, careerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Decimal{}, appErrors.Clone(appErrors.ErrNotFound, "career not found")
		}
		return decimal.Decimal{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load career")
	}
	return career.MonthlyPrice, nil
}

// RegisterPayment records an installment payment. The amount is resolved
// from the price history at the payment date and frozen on the row; later
// price edits never change it.
func (s *BillingService) RegisterPayment(ctx context.Context, req models.CreatePaymentRequest) (*models.PaymentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	paidAt := time.Now().UTC()
	if req.PaidAt != nil && !req.PaidAt.IsZero() {
		paidAt = req.PaidAt.UTC()
	}

	amount, err := s.PriceAsOf(ctx, enrollment.CareerID, paidAt)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		EnrollmentID:  enrollment.ID,
		InstallmentNo: req.InstallmentNo,
		PaidAt:        paidAt,
		Amount:        amount,
		PaidInAdvance: req.PaidInAdvance,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrInstallmentPaid) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "installment already paid for this enrollment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register payment")
	}

	s.logger.Info("payment registered",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("enrollment_id", payment.EnrollmentID),
		zap.Int("installment_no", payment.InstallmentNo),
		zap.String("amount", payment.Amount.String()))

	view := models.NewPaymentView(*payment)
	return &view, nil
}

// VoidPayment soft-cancels an active payment. The row stays in the ledger
// flagged as voided, and the installment becomes payable again.
func (s *BillingService) VoidPayment(ctx context.Context, id int64) (*models.PaymentView, error) {
	payment, err := s.payments.Void(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		case errors.Is(err, repository.ErrAlreadyVoided):
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment is already cancelled")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel payment")
		}
	}

	s.logger.Info("payment cancelled", zap.Int64("payment_id", payment.ID))
	view := models.NewPaymentView(*payment)
	return &view, nil
}

// DeletePayment removes a payment permanently. Unlike voiding this erases
// the ledger row; it exists for administrative cleanup only.
func (s *BillingService) DeletePayment(ctx context.Context, id int64) error {
	if err := s.payments.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	return nil
}

// ListByEnrollment returns the payments of one enrollment, voided rows
// included unless the caller filters them out.
func (s *BillingService) ListByEnrollment(ctx context.Context, enrollmentID int64, includeVoided bool, page, pageSize int) (*response.Page, error) {
	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	payments, total, err := s.payments.ListByEnrollment(ctx, enrollmentID, includeVoided, page, pageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	views := make([]models.PaymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, models.NewPaymentView(p))
	}
	page, pageSize = normalizePage(page, pageSize)
	result := response.NewPage(views, page, pageSize, total)
	return &result, nil
}

// ListAll returns the admin-wide payment listing with student and career
// data joined in.
func (s *BillingService) ListAll(ctx context.Context, filter models.PaymentFilter) (*response.Page, error) {
	rows, total, err := s.payments.ListGlobal(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	result := response.NewPage(rows, page, pageSize, total)
	return &result, nil
}

// PriceHistory returns the price ledger of a career, newest entry first.
func (s *BillingService) PriceHistory(ctx context.Context, careerID int64, page, pageSize int) (*response.Page, error) {
	if _, err := s.careers.FindByID(ctx, careerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "career not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load career")
	}

	entries, total, err := s.history.ListByCareer(ctx, careerID, page, pageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list price history")
	}
	page, pageSize = normalizePage(page, pageSize)
	result := response.NewPage(entries, page, pageSize, total)
	return &result, nil
}

// normalizePage mirrors the defaults applied by the repositories so the
// pagination envelope reports the values actually used.
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

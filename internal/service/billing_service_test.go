package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edusys-ar/escuela-api/internal/models"
	"github.com/edusys-ar/escuela-api/internal/repository"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
)

type mockPaymentRepo struct {
	payments map[int64]models.Payment
	nextID   int64
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.payments == nil {
		m.payments = make(map[int64]models.Payment)
	}
	for _, p := range m.payments {
		if p.EnrollmentID == payment.EnrollmentID && p.InstallmentNo == payment.InstallmentNo && p.Status == models.PaymentStatusActive {
			return repository.ErrInstallmentPaid
		}
	}
	m.nextID++
	payment.ID = m.nextID
	payment.Status = models.PaymentStatusActive
	m.payments[payment.ID] = *payment
	return nil
}

func (m *mockPaymentRepo) Void(ctx context.Context, id int64) (*models.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if p.Status == models.PaymentStatusVoided {
		return nil, repository.ErrAlreadyVoided
	}
	p.Status = models.PaymentStatusVoided
	m.payments[id] = p
	return &p, nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id int64) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.payments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.payments, id)
	return nil
}

func (m *mockPaymentRepo) ListByEnrollment(ctx context.Context, enrollmentID int64, includeVoided bool, page, pageSize int) ([]models.Payment, int, error) {
	var list []models.Payment
	for _, p := range m.payments {
		if p.EnrollmentID != enrollmentID {
			continue
		}
		if !includeVoided && p.Status == models.PaymentStatusVoided {
			continue
		}
		list = append(list, p)
	}
	return list, len(list), nil
}

func (m *mockPaymentRepo) ListGlobal(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentAdminRow, int, error) {
	return nil, 0, nil
}

type mockPriceHistory struct {
	entries []models.PriceHistoryEntry
}

func (m *mockPriceHistory) LatestAsOf(ctx context.Context, careerID int64, instant time.Time) (*models.PriceHistoryEntry, error) {
	var best *models.PriceHistoryEntry
	for i := range m.entries {
		e := m.entries[i]
		if e.CareerID != careerID || e.EffectiveFrom.After(instant) {
			continue
		}
		if best == nil ||
			e.EffectiveFrom.After(best.EffectiveFrom) ||
			(e.EffectiveFrom.Equal(best.EffectiveFrom) && e.CreatedAt.After(best.CreatedAt)) ||
			(e.EffectiveFrom.Equal(best.EffectiveFrom) && e.CreatedAt.Equal(best.CreatedAt) && e.ID > best.ID) {
			best = &m.entries[i]
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	return best, nil
}

func (m *mockPriceHistory) ListByCareer(ctx context.Context, careerID int64, page, pageSize int) ([]models.PriceHistoryEntry, int, error) {
	var list []models.PriceHistoryEntry
	for _, e := range m.entries {
		if e.CareerID == careerID {
			list = append(list, e)
		}
	}
	return list, len(list), nil
}

type mockEnrollmentReader struct {
	enrollments map[int64]models.Enrollment
}

func (m *mockEnrollmentReader) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

type mockCareerReader struct {
	careers map[int64]models.Career
}

func (m *mockCareerReader) FindByID(ctx context.Context, id int64) (*models.Career, error) {
	if c, ok := m.careers[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func newBillingFixture() (*BillingService, *mockPaymentRepo, *mockPriceHistory) {
	payments := &mockPaymentRepo{}
	history := &mockPriceHistory{
		entries: []models.PriceHistoryEntry{
			{ID: 1, CareerID: 1, Amount: decimal.NewFromInt(1000), EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: 2, CareerID: 1, Amount: decimal.NewFromInt(1200), EffectiveFrom: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), CreatedAt: time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)},
		},
	}
	enrollments := &mockEnrollmentReader{enrollments: map[int64]models.Enrollment{
		5: {ID: 5, ProfileID: 9, CareerID: 1},
	}}
	careers := &mockCareerReader{careers: map[int64]models.Career{
		1: {ID: 1, Name: "Desarrollo de Software", MonthlyPrice: decimal.NewFromInt(1200)},
		2: {ID: 2, Name: "Enfermeria", MonthlyPrice: decimal.NewFromInt(900)},
	}}
	svc := NewBillingService(payments, history, enrollments, careers, validator.New(), zap.NewNop())
	return svc, payments, history
}

func paidAtPtr(t time.Time) *time.Time { return &t }

func TestBillingRegisterPaymentUsesPriceInEffect(t *testing.T) {
	svc, _, _ := newBillingFixture()

	february := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	view, err := svc.RegisterPayment(context.Background(), models.CreatePaymentRequest{
		EnrollmentID:  5,
		InstallmentNo: 2,
		PaidAt:        paidAtPtr(february),
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", view.Amount.String())
	assert.Equal(t, february, view.PaidAt)

	april := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	view, err = svc.RegisterPayment(context.Background(), models.CreatePaymentRequest{
		EnrollmentID:  5,
		InstallmentNo: 4,
		PaidAt:        paidAtPtr(april),
	})
	require.NoError(t, err)
	assert.Equal(t, "1200", view.Amount.String())
}

func TestBillingRegisterPaymentDefaultsPaidAtToNow(t *testing.T) {
	svc, payments, _ := newBillingFixture()

	before := time.Now().UTC()
	view, err := svc.RegisterPayment(context.Background(), models.CreatePaymentRequest{
		EnrollmentID:  5,
		InstallmentNo: 1,
	})
	require.NoError(t, err)
	assert.False(t, view.PaidAt.Before(before))
	assert.False(t, view.PaidAt.After(time.Now().UTC()))
	assert.Len(t, payments.payments, 1)
}

func TestBillingRegisterPaymentDuplicateInstallment(t *testing.T) {
	svc, _, _ := newBillingFixture()
	req := models.CreatePaymentRequest{
		EnrollmentID:  5,
		InstallmentNo: 3,
		PaidAt:        paidAtPtr(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)),
	}

	_, err := svc.RegisterPayment(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.RegisterPayment(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBillingPaymentAmountFrozenAfterPriceEdit(t *testing.T) {
	svc, payments, history := newBillingFixture()

	paidAt := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	view, err := svc.RegisterPayment(context.Background(), models.CreatePaymentRequest{
		EnrollmentID:  5,
		InstallmentNo: 4,
		PaidAt:        paidAtPtr(paidAt),
	})
	require.NoError(t, err)
	require.Equal(t, "1200", view.Amount.String())

	// Retroactive price edit covering the paid date.
	history.entries = append(history.entries, models.PriceHistoryEntry{
		ID: 3, CareerID: 1, Amount: decimal.NewFromInt(1500),
		EffectiveFrom: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})

	stored := payments.payments[view.ID]
	assert.Equal(t, "1200", stored.Amount.String())

	// A new payment on the same date resolves against the amended history.
	view, err = svc.RegisterPayment(context.Background(), models.CreatePaymentRequest{
		EnrollmentID:  5,
		InstallmentNo: 5,
		PaidAt:        paidAtPtr(paidAt),
	})
	require.NoError(t, err)
	assert.Equal(t, "1500", view.Amount.String())
}

func TestBillingVoidThenRepayInstallment(t *testing.T) {
	svc, _, _ := newBillingFixture()
	req := models.CreatePaymentRequest{
		EnrollmentID:  5,
		InstallmentNo: 6,
		PaidAt:        paidAtPtr(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)),
	}

	first, err := svc.RegisterPayment(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "1000", first.Amount.String())

	voided, err := svc.VoidPayment(context.Background(), first.ID)
	require.NoError(t, err)
	assert.True(t, voided.Voided)

	// The installment is payable again, at the price of the new date.
	req.PaidAt = paidAtPtr(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	second, err := svc.RegisterPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "1200", second.Amount.String())
	assert.NotEqual(t, first.ID, second.ID)
}

func TestBillingVoidPaymentIsMonotonic(t *testing.T) {
	svc, _, _ := newBillingFixture()
	view, err := svc.RegisterPayment(context.Background(), models.CreatePaymentRequest{
		EnrollmentID:  5,
		InstallmentNo: 1,
		PaidAt:        paidAtPtr(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	_, err = svc.VoidPayment(context.Background(), view.ID)
	require.NoError(t, err)

	_, err = svc.VoidPayment(context.Background(), view.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.VoidPayment(context.Background(), 9999)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBillingRegisterPaymentUnknownEnrollment(t *testing.T) {
	svc, _, _ := newBillingFixture()
	_, err := svc.RegisterPayment(context.Background(), models.CreatePaymentRequest{
		EnrollmentID:  404,
		InstallmentNo: 1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBillingPriceAsOfFallsBackToCareerPrice(t *testing.T) {
	svc, _, _ := newBillingFixture()

	// Career 2 has no history entries.
	amount, err := svc.PriceAsOf(context.Background(), 2, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "900", amount.String())

	// Instant before the earliest entry of career 1 also falls back.
	amount, err = svc.PriceAsOf(context.Background(), 1, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1200", amount.String())
}

func TestBillingPriceAsOfSameInstantLastWriteWins(t *testing.T) {
	svc, _, history := newBillingFixture()

	effective := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	history.entries = append(history.entries, models.PriceHistoryEntry{
		ID: 3, CareerID: 1, Amount: decimal.NewFromInt(1300),
		EffectiveFrom: effective,
		CreatedAt:     time.Date(2025, 2, 25, 0, 0, 0, 0, time.UTC),
	})

	amount, err := svc.PriceAsOf(context.Background(), 1, effective)
	require.NoError(t, err)
	assert.Equal(t, "1300", amount.String())
}

func TestBillingListByEnrollmentIncludesVoidedByDefault(t *testing.T) {
	svc, _, _ := newBillingFixture()

	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	first, err := svc.RegisterPayment(context.Background(), models.CreatePaymentRequest{EnrollmentID: 5, InstallmentNo: 1, PaidAt: paidAtPtr(feb)})
	require.NoError(t, err)
	_, err = svc.RegisterPayment(context.Background(), models.CreatePaymentRequest{EnrollmentID: 5, InstallmentNo: 2, PaidAt: paidAtPtr(feb)})
	require.NoError(t, err)
	_, err = svc.VoidPayment(context.Background(), first.ID)
	require.NoError(t, err)

	page, err := svc.ListByEnrollment(context.Background(), 5, true, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)

	page, err = svc.ListByEnrollment(context.Background(), 5, false, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalItems)
}

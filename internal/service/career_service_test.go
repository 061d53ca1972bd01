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
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
)

type mockCareerRepo struct {
	careers       map[int64]models.Career
	nextID        int64
	appended      []models.PriceHistoryEntry
	updatedNoDiff int
}

func (m *mockCareerRepo) Create(ctx context.Context, career *models.Career) error {
	if m.careers == nil {
		m.careers = make(map[int64]models.Career)
	}
	m.nextID++
	career.ID = m.nextID
	m.careers[career.ID] = *career
	m.appended = append(m.appended, models.PriceHistoryEntry{
		CareerID:      career.ID,
		Amount:        career.MonthlyPrice,
		EffectiveFrom: time.Now().UTC(),
	})
	return nil
}

func (m *mockCareerRepo) Update(ctx context.Context, career *models.Career, entry *models.PriceHistoryEntry) error {
	m.careers[career.ID] = *career
	if entry != nil {
		m.appended = append(m.appended, *entry)
	} else {
		m.updatedNoDiff++
	}
	return nil
}

func (m *mockCareerRepo) FindByID(ctx context.Context, id int64) (*models.Career, error) {
	if c, ok := m.careers[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCareerRepo) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	for id, c := range m.careers {
		if c.Name == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCareerRepo) List(ctx context.Context, filter models.CareerFilter) ([]models.Career, int, error) {
	var list []models.Career
	for _, c := range m.careers {
		list = append(list, c)
	}
	return list, len(list), nil
}

func (m *mockCareerRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.careers[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.careers, id)
	return nil
}

type mockCareerEnrollmentCounter struct {
	counts map[int64]int
}

func (m *mockCareerEnrollmentCounter) CountByCareer(ctx context.Context, careerID int64) (int, error) {
	return m.counts[careerID], nil
}

func newCareerFixture() (*CareerService, *mockCareerRepo, *mockCareerEnrollmentCounter) {
	repo := &mockCareerRepo{}
	counter := &mockCareerEnrollmentCounter{counts: map[int64]int{}}
	svc := NewCareerService(repo, counter, nil, validator.New(), zap.NewNop())
	return svc, repo, counter
}

func TestCareerCreateSeedsPriceHistory(t *testing.T) {
	svc, repo, _ := newCareerFixture()

	career, err := svc.Create(context.Background(), models.CreateCareerRequest{
		Name:           "Desarrollo de Software",
		MonthlyPrice:   decimal.NewFromInt(1000),
		DurationMonths: 24,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), career.ID)
	require.Len(t, repo.appended, 1)
	assert.Equal(t, "1000", repo.appended[0].Amount.String())
}

func TestCareerCreateRejectsDuplicateName(t *testing.T) {
	svc, _, _ := newCareerFixture()
	req := models.CreateCareerRequest{Name: "Enfermeria", MonthlyPrice: decimal.NewFromInt(900), DurationMonths: 36}

	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCareerCreateRejectsNonPositivePrice(t *testing.T) {
	svc, _, _ := newCareerFixture()
	_, err := svc.Create(context.Background(), models.CreateCareerRequest{
		Name:           "Enfermeria",
		MonthlyPrice:   decimal.Zero,
		DurationMonths: 36,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCareerUpdateAppendsEntryOnlyWhenPriceChanges(t *testing.T) {
	svc, repo, _ := newCareerFixture()
	career, err := svc.Create(context.Background(), models.CreateCareerRequest{
		Name:           "Desarrollo de Software",
		MonthlyPrice:   decimal.NewFromInt(1000),
		DurationMonths: 24,
	})
	require.NoError(t, err)
	require.Len(t, repo.appended, 1)

	// Saving with the same price appends nothing.
	_, err = svc.Update(context.Background(), career.ID, models.UpdateCareerRequest{
		Name:           "Desarrollo de Software",
		MonthlyPrice:   decimal.NewFromInt(1000),
		DurationMonths: 24,
	})
	require.NoError(t, err)
	assert.Len(t, repo.appended, 1)
	assert.Equal(t, 1, repo.updatedNoDiff)

	// A price change appends exactly one entry.
	effective := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	updated, err := svc.Update(context.Background(), career.ID, models.UpdateCareerRequest{
		Name:           "Desarrollo de Software",
		MonthlyPrice:   decimal.NewFromInt(1200),
		DurationMonths: 24,
		EffectiveFrom:  &effective,
	})
	require.NoError(t, err)
	assert.Equal(t, "1200", updated.MonthlyPrice.String())
	require.Len(t, repo.appended, 2)
	assert.Equal(t, "1200", repo.appended[1].Amount.String())
	assert.Equal(t, effective, repo.appended[1].EffectiveFrom)
}

func TestCareerDeleteBlockedByEnrollments(t *testing.T) {
	svc, _, counter := newCareerFixture()
	career, err := svc.Create(context.Background(), models.CreateCareerRequest{
		Name:           "Enfermeria",
		MonthlyPrice:   decimal.NewFromInt(900),
		DurationMonths: 36,
	})
	require.NoError(t, err)

	counter.counts[career.ID] = 2
	err = svc.Delete(context.Background(), career.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	counter.counts[career.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), career.ID))
}

func TestCareerUpdateUnknownCareer(t *testing.T) {
	svc, _, _ := newCareerFixture()
	_, err := svc.Update(context.Background(), 77, models.UpdateCareerRequest{
		Name:           "Enfermeria",
		MonthlyPrice:   decimal.NewFromInt(900),
		DurationMonths: 36,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

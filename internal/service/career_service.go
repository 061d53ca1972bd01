package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusys-ar/escuela-api/internal/models"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
)

type careerRepository interface {
	Create(ctx context.Context, career *models.Career) error
	Update(ctx context.Context, career *models.Career, entry *models.PriceHistoryEntry) error
	FindByID(ctx context.Context, id int64) (*models.Career, error)
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)
	List(ctx context.Context, filter models.CareerFilter) ([]models.Career, int, error)
	Delete(ctx context.Context, id int64) error
}

type careerEnrollmentRepository interface {
	CountByCareer(ctx context.Context, careerID int64) (int, error)
}

type careerCacheInvalidator interface {
	InvalidateCareers(ctx context.Context)
}

// CareerService manages careers and the price-ledger semantics of their
// monthly price.
type CareerService struct {
	repo        careerRepository
	enrollments careerEnrollmentRepository
	cache       careerCacheInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCareerService constructs a CareerService instance.
func NewCareerService(repo careerRepository, enrollments careerEnrollmentRepository, cache careerCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *CareerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CareerService{repo: repo, enrollments: enrollments, cache: cache, validator: validate, logger: logger}
}

// Create registers a new career. The initial price is also recorded as the
// seed entry of its price history.
func (s *CareerService) Create(ctx context.Context, req models.CreateCareerRequest) (*models.Career, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid career payload")
	}
	if !req.MonthlyPrice.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "monthly price must be greater than zero")
	}

	taken, err := s.repo.ExistsByName(ctx, req.Name, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check career name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a career with that name already exists")
	}

	career := &models.Career{
		Name:           req.Name,
		MonthlyPrice:   req.MonthlyPrice,
		DurationMonths: req.DurationMonths,
	}
	if req.CohortStart != nil {
		career.CohortStart = req.CohortStart.UTC()
	}
	if err := s.repo.Create(ctx, career); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create career")
	}

	s.invalidate(ctx)
	s.logger.Info("career created", zap.Int64("career_id", career.ID), zap.String("name", career.Name))
	return career, nil
}

// Update edits a career. A price change appends a history entry in the
// same transaction as the update; saving the career with the unchanged
// price appends nothing.
func (s *CareerService) Update(ctx context.Context, id int64, req models.UpdateCareerRequest) (*models.Career, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid career payload")
	}
	if !req.MonthlyPrice.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "monthly price must be greater than zero")
	}

	career, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "career not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load career")
	}

	taken, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check career name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a career with that name already exists")
	}

	var entry *models.PriceHistoryEntry
	if !career.MonthlyPrice.Equal(req.MonthlyPrice) {
		effectiveFrom := time.Now().UTC()
		if req.EffectiveFrom != nil {
			effectiveFrom = req.EffectiveFrom.UTC()
		}
		entry = &models.PriceHistoryEntry{
			CareerID:      career.ID,
			Amount:        req.MonthlyPrice,
			EffectiveFrom: effectiveFrom,
		}
	}

	career.Name = req.Name
	career.MonthlyPrice = req.MonthlyPrice
	career.DurationMonths = req.DurationMonths
	if req.CohortStart != nil {
		career.CohortStart = req.CohortStart.UTC()
	}

	if err := s.repo.Update(ctx, career, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update career")
	}

	s.invalidate(ctx)
	if entry != nil {
		s.logger.Info("career price changed",
			zap.Int64("career_id", career.ID),
			zap.String("amount", entry.Amount.String()),
			zap.Time("effective_from", entry.EffectiveFrom))
	}
	return career, nil
}

// Get returns one career.
func (s *CareerService) Get(ctx context.Context, id int64) (*models.Career, error) {
	career, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "career not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load career")
	}
	return career, nil
}

// List returns careers paginated with optional name search.
func (s *CareerService) List(ctx context.Context, filter models.CareerFilter) (*response.Page, error) {
	careers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list careers")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	result := response.NewPage(careers, page, pageSize, total)
	return &result, nil
}

// Delete removes a career unless students are enrolled in it.
func (s *CareerService) Delete(ctx context.Context, id int64) error {
	enrolled, err := s.enrollments.CountByCareer(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollments")
	}
	if enrolled > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "career has enrolled students and cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "career not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete career")
	}

	s.invalidate(ctx)
	return nil
}

func (s *CareerService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateCareers(ctx)
	}
}

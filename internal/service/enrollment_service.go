package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusys-ar/escuela-api/internal/models"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Enrollment, error)
	Exists(ctx context.Context, profileID, careerID int64) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	ListByProfile(ctx context.Context, profileID int64, page, pageSize int) ([]models.EnrollmentDetail, int, error)
	Delete(ctx context.Context, id int64) error
}

type enrollmentProfileRepository interface {
	FindProfileByID(ctx context.Context, id int64) (*models.UserProfile, error)
	FindProfileByUserID(ctx context.Context, userID int64) (*models.UserProfile, error)
}

type enrollmentCareerRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Career, error)
}

type enrollmentPaymentRepository interface {
	CountByEnrollment(ctx context.Context, enrollmentID int64) (int, error)
}

// EnrollmentService manages student enrollments in careers.
type EnrollmentService struct {
	repo      enrollmentRepository
	profiles  enrollmentProfileRepository
	careers   enrollmentCareerRepository
	payments  enrollmentPaymentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService instance.
func NewEnrollmentService(
	repo enrollmentRepository,
	profiles enrollmentProfileRepository,
	careers enrollmentCareerRepository,
	payments enrollmentPaymentRepository,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{
		repo:      repo,
		profiles:  profiles,
		careers:   careers,
		payments:  payments,
		validator: validate,
		logger:    logger,
	}
}

// Create enrolls a profile in a career. Both sides must exist and the
// pair must not be enrolled yet.
func (s *EnrollmentService) Create(ctx context.Context, req models.CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	if _, err := s.profiles.FindProfileByID(ctx, req.ProfileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	if _, err := s.careers.FindByID(ctx, req.CareerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "career not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load career")
	}

	enrolled, err := s.repo.Exists(ctx, req.ProfileID, req.CareerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this career")
	}

	enrollment := &models.Enrollment{ProfileID: req.ProfileID, CareerID: req.CareerID}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("enrollment created",
		zap.Int64("enrollment_id", enrollment.ID),
		zap.Int64("profile_id", enrollment.ProfileID),
		zap.Int64("career_id", enrollment.CareerID))
	return enrollment, nil
}

// ListByUser returns the enrollments of the profile attached to a user.
// A user without a profile has no enrollments, which is an empty page
// rather than an error.
func (s *EnrollmentService) ListByUser(ctx context.Context, userID int64, page, pageSize int) (*response.Page, error) {
	profile, err := s.profiles.FindProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			page, pageSize = normalizePage(page, pageSize)
			result := response.NewPage([]models.EnrollmentDetail{}, page, pageSize, 0)
			return &result, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	details, total, err := s.repo.ListByProfile(ctx, profile.ID, page, pageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page, pageSize = normalizePage(page, pageSize)
	result := response.NewPage(details, page, pageSize, total)
	return &result, nil
}

// Delete removes an enrollment when no payments reference it. Any payment,
// voided included, blocks deletion to keep the ledger consistent.
func (s *EnrollmentService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	count, err := s.payments.CountByEnrollment(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment has payments and cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

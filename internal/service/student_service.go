package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/edusys-ar/escuela-api/internal/models"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
)

type studentUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindProfileByUserID(ctx context.Context, userID int64) (*models.UserProfile, error)
}

type studentEnrollmentRepository interface {
	ListAllByProfile(ctx context.Context, profileID int64) ([]models.EnrollmentDetail, error)
}

type studentPaymentRepository interface {
	ListByProfile(ctx context.Context, profileID int64) ([]models.Payment, error)
}

// StudentService serves the self-service views of an authenticated student.
type StudentService struct {
	users       studentUserRepository
	enrollments studentEnrollmentRepository
	payments    studentPaymentRepository
	logger      *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(users studentUserRepository, enrollments studentEnrollmentRepository, payments studentPaymentRepository, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{users: users, enrollments: enrollments, payments: payments, logger: logger}
}

// Profile returns the account and profile of the authenticated student.
func (s *StudentService) Profile(ctx context.Context, userID int64) (*models.UserDetail, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	profile, err := s.users.FindProfileByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
		}
		profile = nil
	}
	return userDetail(user, profile), nil
}

// Careers returns the careers the student is enrolled in.
func (s *StudentService) Careers(ctx context.Context, userID int64) ([]models.EnrollmentDetail, error) {
	profile, err := s.profileOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	details, err := s.enrollments.ListAllByProfile(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return details, nil
}

// Payments returns every payment of the student across all enrollments,
// voided rows included so the ledger history stays visible.
func (s *StudentService) Payments(ctx context.Context, userID int64) ([]models.PaymentView, error) {
	profile, err := s.profileOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByProfile(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	views := make([]models.PaymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, models.NewPaymentView(p))
	}
	return views, nil
}

func (s *StudentService) profileOf(ctx context.Context, userID int64) (*models.UserProfile, error) {
	profile, err := s.users.FindProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edusys-ar/escuela-api/internal/models"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
)

type userRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindProfileByUserID(ctx context.Context, userID int64) (*models.UserProfile, error)
	ExistsUsername(ctx context.Context, username string, excludeID int64) (bool, error)
	ExistsDNI(ctx context.Context, dni string, excludeProfileID int64) (bool, error)
	Create(ctx context.Context, user *models.User, profile *models.UserProfile) error
	Update(ctx context.Context, user *models.User, profile *models.UserProfile) error
	Delete(ctx context.Context, id int64) error
	ListStudents(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, int, error)
}

// UserService manages accounts and their profiles.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Create registers an account with its profile. Username and DNI must be
// unique across the system.
func (s *UserService) Create(ctx context.Context, req models.CreateUserRequest) (*models.UserDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	taken, err := s.repo.ExistsUsername(ctx, req.Username, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already in use")
	}
	taken, err = s.repo.ExistsDNI(ctx, req.DNI, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check dni")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "dni already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{Username: req.Username, PasswordHash: string(hash)}
	profile := &models.UserProfile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		DNI:       req.DNI,
		Email:     req.Email,
		Role:      role,
	}
	if err := s.repo.Create(ctx, user, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return userDetail(user, profile), nil
}

// Update edits an account and its profile.
func (s *UserService) Update(ctx context.Context, id int64, req models.UpdateUserRequest) (*models.UserDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	profile, err := s.repo.FindProfileByUserID(ctx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
		}
		profile = &models.UserProfile{UserID: id}
	}

	taken, err := s.repo.ExistsUsername(ctx, req.Username, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already in use")
	}
	taken, err = s.repo.ExistsDNI(ctx, req.DNI, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check dni")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "dni already registered")
	}

	user.Username = req.Username
	profile.FirstName = req.FirstName
	profile.LastName = req.LastName
	profile.DNI = req.DNI
	profile.Email = req.Email
	profile.Role = role

	if err := s.repo.Update(ctx, user, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return userDetail(user, profile), nil
}

// Get returns one account with its profile.
func (s *UserService) Get(ctx context.Context, id int64) (*models.UserDetail, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	profile, err := s.repo.FindProfileByUserID(ctx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
		}
		profile = nil
	}
	return userDetail(user, profile), nil
}

// Delete removes an account and its profile.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	return nil
}

// ListStudents returns student accounts paginated with optional search.
func (s *UserService) ListStudents(ctx context.Context, filter models.UserFilter) (*response.Page, error) {
	users, total, err := s.repo.ListStudents(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	result := response.NewPage(users, page, pageSize, total)
	return &result, nil
}

func userDetail(user *models.User, profile *models.UserProfile) *models.UserDetail {
	detail := &models.UserDetail{ID: user.ID, Username: user.Username}
	if profile != nil {
		detail.FirstName = &profile.FirstName
		detail.LastName = &profile.LastName
		detail.DNI = &profile.DNI
		detail.Email = &profile.Email
		detail.Role = profile.Role
	}
	return detail
}

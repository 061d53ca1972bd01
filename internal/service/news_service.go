package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusys-ar/escuela-api/internal/models"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
)

type newsRepository interface {
	Create(ctx context.Context, article *models.News) error
	FindByID(ctx context.Context, id int64) (*models.News, error)
	Update(ctx context.Context, article *models.News) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.NewsFilter) ([]models.News, int, error)
}

// NewsService manages news articles with a cached read path.
type NewsService struct {
	repo      newsRepository
	cache     *CacheService
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNewsService constructs a NewsService instance.
func NewNewsService(repo newsRepository, cache *CacheService, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *NewsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NewsService{repo: repo, cache: cache, ttl: ttl, validator: validate, logger: logger}
}

// Create publishes a news article.
func (s *NewsService) Create(ctx context.Context, req models.CreateNewsRequest, authorID int64) (*models.News, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid news payload")
	}

	article := &models.News{
		Title:    req.Title,
		Content:  req.Content,
		ImageURL: req.ImageURL,
		AuthorID: authorID,
	}
	if err := s.repo.Create(ctx, article); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create news")
	}

	s.invalidate(ctx)
	s.logger.Info("news published", zap.Int64("news_id", article.ID), zap.Int64("author_id", authorID))
	return article, nil
}

// Update edits a news article.
func (s *NewsService) Update(ctx context.Context, id int64, req models.UpdateNewsRequest) (*models.News, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid news payload")
	}

	article, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "news not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load news")
	}

	article.Title = req.Title
	article.Content = req.Content
	if req.ImageURL != nil {
		article.ImageURL = req.ImageURL
	}
	if err := s.repo.Update(ctx, article); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "news not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update news")
	}

	s.invalidate(ctx)
	return article, nil
}

// Get returns one news article.
func (s *NewsService) Get(ctx context.Context, id int64) (*models.News, error) {
	article, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "news not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load news")
	}
	return article, nil
}

// Delete removes a news article.
func (s *NewsService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "news not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete news")
	}
	s.invalidate(ctx)
	return nil
}

// List returns news newest first, serving repeated pages from cache.
func (s *NewsService) List(ctx context.Context, filter models.NewsFilter) (*response.Page, error) {
	key := s.listKey(filter)
	var cached response.Page
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list news")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	result := response.NewPage(items, page, pageSize, total)

	if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
		s.logger.Debug("news cache population failed", zap.Error(err))
	}
	return &result, nil
}

func (s *NewsService) listKey(filter models.NewsFilter) string {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	return fmt.Sprintf("%slist:%d:%d:%s", CacheKeyNewsPrefix, page, pageSize, filter.Search)
}

func (s *NewsService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateNews(ctx)
	}
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusys-ar/escuela-api/internal/models"
	"github.com/edusys-ar/escuela-api/internal/service"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
)

// NewsHandler exposes news endpoints.
type NewsHandler struct {
	news *service.NewsService
}

// NewNewsHandler constructs NewsHandler.
func NewNewsHandler(news *service.NewsService) *NewsHandler {
	return &NewsHandler{news: news}
}

// Create publishes a news article authored by the authenticated admin.
func (h *NewsHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.CreateNewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	article, err := h.news.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "news published", article)
}

// Get returns one news article.
func (h *NewsHandler) Get(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	article, err := h.news.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "news found", article)
}

// Update edits a news article.
func (h *NewsHandler) Update(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.UpdateNewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	article, err := h.news.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "news updated", article)
}

// Delete removes a news article.
func (h *NewsHandler) Delete(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.news.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "news deleted", nil)
}

// List returns the paginated news listing, newest first.
func (h *NewsHandler) List(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	page, err := h.news.List(c.Request.Context(), models.NewsFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "news", page)
}

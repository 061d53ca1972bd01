package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusys-ar/escuela-api/internal/models"
	"github.com/edusys-ar/escuela-api/internal/service"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
)

// CareerHandler exposes career and price-history endpoints.
type CareerHandler struct {
	careers *service.CareerService
	billing *service.BillingService
}

// NewCareerHandler constructs CareerHandler.
func NewCareerHandler(careers *service.CareerService, billing *service.BillingService) *CareerHandler {
	return &CareerHandler{careers: careers, billing: billing}
}

// Create registers a new career.
func (h *CareerHandler) Create(c *gin.Context) {
	var req models.CreateCareerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	career, err := h.careers.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "career created", career)
}

// Get returns one career.
func (h *CareerHandler) Get(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	career, err := h.careers.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "career found", career)
}

// Update edits a career, appending a price-history entry when the price
// changed.
func (h *CareerHandler) Update(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.UpdateCareerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	career, err := h.careers.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "career updated", career)
}

// Delete removes a career without enrollments.
func (h *CareerHandler) Delete(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.careers.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "career deleted", nil)
}

// List returns the paginated career listing.
func (h *CareerHandler) List(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	page, err := h.careers.List(c.Request.Context(), models.CareerFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "careers", page)
}

type priceHistoryRequest struct {
	CareerID int64 `json:"career_id" binding:"required,gt=0"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// PriceHistory returns the paginated price ledger of a career, newest
// entry first.
func (h *CareerHandler) PriceHistory(c *gin.Context) {
	var req priceHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	page, err := h.billing.PriceHistory(c.Request.Context(), req.CareerID, req.Page, req.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "price history", page)
}

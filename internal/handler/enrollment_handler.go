package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusys-ar/escuela-api/internal/models"
	"github.com/edusys-ar/escuela-api/internal/service"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Create enrolls a student profile in a career.
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req models.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "enrollment created", enrollment)
}

type enrollmentsByUserRequest struct {
	UserID   int64 `json:"user_id" binding:"required,gt=0"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// ByUser returns the enrollments of the profile attached to a user.
func (h *EnrollmentHandler) ByUser(c *gin.Context) {
	var req enrollmentsByUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	page, err := h.enrollments.ListByUser(c.Request.Context(), req.UserID, req.Page, req.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "enrollments", page)
}

// Delete removes an enrollment that has no payments.
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.enrollments.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "enrollment deleted", nil)
}

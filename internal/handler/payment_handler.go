package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusys-ar/escuela-api/internal/models"
	"github.com/edusys-ar/escuela-api/internal/service"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
)

// PaymentHandler exposes the payment ledger endpoints.
type PaymentHandler struct {
	billing *service.BillingService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(billing *service.BillingService) *PaymentHandler {
	return &PaymentHandler{billing: billing}
}

// Create registers an installment payment at the price in effect on the
// payment date.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.billing.RegisterPayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "payment registered", payment)
}

// Cancel voids a payment, keeping the row in the ledger.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	payment, err := h.billing.VoidPayment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "payment cancelled", payment)
}

// Delete removes a payment row permanently.
func (h *PaymentHandler) Delete(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.billing.DeletePayment(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "payment deleted", nil)
}

type paymentsByEnrollmentRequest struct {
	EnrollmentID  int64 `json:"enrollment_id" binding:"required,gt=0"`
	IncludeVoided *bool `json:"include_voided"`
	Page          int   `json:"page"`
	PageSize      int   `json:"page_size"`
}

// ByEnrollment returns the payments of one enrollment. Voided payments
// are included unless the caller opts out.
func (h *PaymentHandler) ByEnrollment(c *gin.Context) {
	var req paymentsByEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	includeVoided := true
	if req.IncludeVoided != nil {
		includeVoided = *req.IncludeVoided
	}
	page, err := h.billing.ListByEnrollment(c.Request.Context(), req.EnrollmentID, includeVoided, req.Page, req.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "payments", page)
}

// List returns the admin-wide payment listing.
func (h *PaymentHandler) List(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	page, err := h.billing.ListAll(c.Request.Context(), models.PaymentFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "payments", page)
}

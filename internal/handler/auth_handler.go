package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusys-ar/escuela-api/internal/models"
	"github.com/edusys-ar/escuela-api/internal/service"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
)

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login authenticates the user and returns a signed token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "login successful", result)
}

package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edusys-ar/escuela-api/internal/middleware"
	"github.com/edusys-ar/escuela-api/internal/models"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// idParam parses the :id route parameter as a positive int64.
func idParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid id")
	}
	return id, nil
}

// pageRequest is the shared body of the POST ...paginated endpoints.
type pageRequest struct {
	Search   string `json:"search"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

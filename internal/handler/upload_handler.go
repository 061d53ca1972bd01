package handler

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
	"github.com/edusys-ar/escuela-api/pkg/response"
	"github.com/edusys-ar/escuela-api/pkg/storage"
)

var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// UploadHandler stores news images and returns their public URL.
type UploadHandler struct {
	storage    *storage.LocalStorage
	publicPath string
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(store *storage.LocalStorage, publicPath string) *UploadHandler {
	if publicPath == "" {
		publicPath = "/static/news_images"
	}
	return &UploadHandler{storage: store, publicPath: publicPath}
}

// Upload receives a multipart image and writes it under a random name.
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "missing file"))
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, ok := allowedImageExtensions[ext]; !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported image type"))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	filename := uuid.NewString() + ext
	if _, err := h.storage.SaveStream(filename, src); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload"))
		return
	}

	response.Created(c, "file uploaded", gin.H{
		"filename": filename,
		"url":      path.Join(h.publicPath, filename),
	})
}

package staging

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"salespulse/internal/pkg/response"
	"salespulse/internal/repository"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Stage accepts a multipart spreadsheet upload and returns the staged
// record with its preview (or the structural problems found).
func (h *Handler) Stage(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "NO_FILE", "no file provided")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_FILE", "could not read uploaded file")
		return
	}
	defer file.Close()

	u, err := h.service.Stage(c.Request.Context(), userID, fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyFile):
			response.Error(c, http.StatusBadRequest, "EMPTY_FILE", err.Error())
		case errors.Is(err, ErrFileTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error())
		case errors.Is(err, ErrInvalidFileType):
			response.Error(c, http.StatusBadRequest, "INVALID_FILE_TYPE", err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "STAGE_FAILED", "failed to stage upload")
		}
		return
	}

	response.Success(c, http.StatusCreated, toResponse(u))
}

func (h *Handler) GetPreview(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	u, err := h.service.GetPreview(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "staged upload not found")
		case errors.Is(err, ErrNotOwner):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "you do not own this upload")
		case errors.Is(err, ErrExpired):
			response.Error(c, http.StatusGone, "EXPIRED", "staged upload has expired")
		default:
			response.Error(c, http.StatusInternalServerError, "PREVIEW_FAILED", "failed to load preview")
		}
		return
	}

	response.Success(c, http.StatusOK, toResponse(u))
}

func (h *Handler) Discard(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	if err := h.service.Discard(c.Request.Context(), userID, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, ErrNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "staged upload not found")
		case errors.Is(err, ErrNotOwner):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "you do not own this upload")
		default:
			response.Error(c, http.StatusInternalServerError, "DISCARD_FAILED", "failed to discard upload")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "discarded"})
}

func mustUserID(c *gin.Context) int64 {
	id, exists := c.Get("user_id")
	if !exists {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		c.Abort()
		return 0
	}
	switch v := id.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user id")
	c.Abort()
	return 0
}

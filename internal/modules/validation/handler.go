package validation

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

// ValidateHeaders runs (or returns the stored) header validation for a
// completed dataset.
func (h *Handler) ValidateHeaders(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	var req ValidateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
	}

	report, err := h.service.ValidateHeaders(c.Request.Context(), userID, c.Param("id"), req.Force)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "dataset not found")
		case errors.Is(err, ErrNotOwner):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "you do not own this dataset")
		case errors.Is(err, ErrImportNotFinished):
			response.Error(c, http.StatusConflict, "IMPORT_NOT_FINISHED", "dataset import has not finished")
		default:
			response.Error(c, http.StatusInternalServerError, "VALIDATION_FAILED", "header validation failed")
		}
		return
	}

	response.Success(c, http.StatusOK, toResponse(report))
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

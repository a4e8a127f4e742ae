package importer

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

func (h *Handler) GetProgress(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	p, err := h.service.GetProgress(c.Request.Context(), userID, c.Param("jobID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

func (h *Handler) Cancel(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	p, err := h.service.Cancel(c.Request.Context(), userID, c.Param("jobID"))
	if err != nil {
		if errors.Is(err, ErrNotCancellable) {
			response.Error(c, http.StatusConflict, "NOT_CANCELLABLE", "import is already finished")
			return
		}
		h.respondError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, p)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "import task not found")
	case errors.Is(err, ErrNotOwner):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "you do not own this import")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "request failed")
	}
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

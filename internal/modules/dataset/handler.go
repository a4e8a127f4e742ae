package dataset

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

// Confirm finalizes a staged upload with the user's column selection and
// queues the asynchronous import.
func (h *Handler) Confirm(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	d, err := h.service.Confirm(c.Request.Context(), userID, c.Param("id"), req.SelectedColumns, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "staged upload not found")
		case errors.Is(err, ErrNotOwner):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "you do not own this upload")
		case errors.Is(err, ErrExpired):
			response.Error(c, http.StatusGone, "EXPIRED", "staged upload has expired")
		case errors.Is(err, ErrAlreadyConfirmed):
			response.Error(c, http.StatusConflict, "ALREADY_CONFIRMED", "upload was already confirmed")
		case errors.Is(err, ErrNotConfirmable):
			response.Error(c, http.StatusConflict, "NOT_CONFIRMABLE", "upload is not in a confirmable state")
		case errors.Is(err, ErrInvalidColumns):
			response.ErrorWithDetails(c, http.StatusBadRequest, "INVALID_COLUMNS",
				"selected columns are invalid", err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "CONFIRM_FAILED", "failed to confirm upload")
		}
		return
	}

	response.Success(c, http.StatusAccepted, toResponse(d))
}

func (h *Handler) List(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	datasets, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "LIST_FAILED", "failed to list datasets")
		return
	}

	items := make([]DatasetResponse, 0, len(datasets))
	for _, d := range datasets {
		items = append(items, toResponse(d))
	}
	response.Success(c, http.StatusOK, items)
}

func (h *Handler) Get(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	d, a, err := h.service.GetDetail(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toDetailResponse(d, a))
}

func (h *Handler) Preview(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	rows, columns, total, err := h.service.Preview(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrImportNotFinished) {
			response.Error(c, http.StatusConflict, "IMPORT_NOT_FINISHED", "dataset import has not finished")
			return
		}
		h.respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, PreviewResponse{Columns: columns, Rows: rows, TotalRows: total})
}

func (h *Handler) Delete(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "dataset not found")
	case errors.Is(err, ErrNotOwner):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "you do not own this dataset")
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

package staging

import "github.com/gin-gonic/gin"

// RegisterRoutes registers staging routes under the protected group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	uploads := r.Group("/uploads")
	{
		uploads.POST("/stage", h.Stage)
		uploads.GET("/:id/preview", h.GetPreview)
		uploads.DELETE("/:id", h.Discard)
	}
}

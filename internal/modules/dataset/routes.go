package dataset

import "github.com/gin-gonic/gin"

// RegisterRoutes registers dataset routes under the protected group.
// Confirmation lives under /uploads because it acts on a staged upload.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/uploads/:id/confirm", h.Confirm)

	datasets := r.Group("/datasets")
	{
		datasets.GET("", h.List)
		datasets.GET("/:id", h.Get)
		datasets.GET("/:id/preview", h.Preview)
		datasets.DELETE("/:id", h.Delete)
	}
}

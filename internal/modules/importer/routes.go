package importer

import "github.com/gin-gonic/gin"

// RegisterRoutes registers import progress routes under the protected group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	imports := r.Group("/imports")
	{
		imports.GET("/:jobID/progress", h.GetProgress)
		imports.POST("/:jobID/cancel", h.Cancel)
	}
}

package validation

import "github.com/gin-gonic/gin"

// RegisterRoutes registers header validation routes under the protected group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/datasets/:id/validate-headers", h.ValidateHeaders)
}

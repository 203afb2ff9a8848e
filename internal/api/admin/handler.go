package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/docqa/internal/api/response"
	"github.com/liliang-cn/docqa/internal/service"
	"go.uber.org/zap"
)

// Handler handles admin API requests
type Handler struct {
	adminService *service.AdminService
	logger       *zap.Logger
}

// NewHandler creates a new admin handler
func NewHandler(adminService *service.AdminService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		adminService: adminService,
		logger:       logger,
	}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/stats", h.GetStats)
}

// GetStats reports session occupancy and history totals
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

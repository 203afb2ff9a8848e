package api

import (
	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/docqa/internal/api/admin"
	"github.com/liliang-cn/docqa/internal/api/middleware"
	"github.com/liliang-cn/docqa/internal/api/qa"
	"github.com/liliang-cn/docqa/internal/metrics"
	"github.com/liliang-cn/docqa/internal/service"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey         string
	AllowOrigins   []string
	MaxUploadBytes int64
	RateLimit      bool
	RequestsPerMin int
	Burst          int
}

// Services bundles the handlers' dependencies
type Services struct {
	Ingest  *service.IngestService
	QA      *service.QAService
	Admin   *service.AdminService
	Metrics *metrics.Metrics
}

// SetupRouter sets up the Gin router
func SetupRouter(svc Services, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger, svc.Metrics))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	if svc.Metrics != nil {
		r.GET("/metrics", gin.WrapH(svc.Metrics.Handler()))
	}

	// Public QA API
	qaHandler := qa.NewHandler(svc.Ingest, svc.QA, cfg.MaxUploadBytes, logger)
	r.GET("/healthz", qaHandler.Healthz)
	public := r.Group("")
	if cfg.RateLimit {
		public.Use(middleware.RateLimit(cfg.RequestsPerMin, cfg.Burst))
	}
	qaHandler.RegisterRoutes(public)

	// Admin API (requires API key)
	adminHandler := admin.NewHandler(svc.Admin, logger)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	adminHandler.RegisterRoutes(adminGroup)

	return r
}

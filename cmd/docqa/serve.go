package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/docqa/internal/api"
	"github.com/liliang-cn/docqa/internal/chunker"
	"github.com/liliang-cn/docqa/internal/config"
	"github.com/liliang-cn/docqa/internal/loader"
	"github.com/liliang-cn/docqa/internal/metrics"
	"github.com/liliang-cn/docqa/internal/provider"
	"github.com/liliang-cn/docqa/internal/repository"
	"github.com/liliang-cn/docqa/internal/service"
	"github.com/liliang-cn/docqa/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.yaml)")

	return serve
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfgPath string) error {
	envFile, err := config.LoadDotEnv()
	if err != nil {
		return err
	}

	// Load configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	if envFile != "" {
		logger.Info("Loaded environment file", zap.String("path", envFile))
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("No default OpenAI API key configured; uploads must supply openai_api_key")
	}

	// Initialize history database (optional)
	var history service.HistoryStore
	if cfg.Database.Path != "" {
		db, err := repository.NewDB(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		history = repository.NewSessionRepository(db)
	}

	splitter, err := chunker.NewRecursive(chunker.Config{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
	})
	if err != nil {
		return fmt.Errorf("invalid chunker config: %w", err)
	}

	m := metrics.New()
	sessions := session.NewManager(cfg.Session, logger.Named("session"), m)

	// Initialize services
	ingestService := service.NewIngestService(
		cfg,
		loader.New(cfg.Storage.TempDir, logger.Named("loader")),
		splitter,
		provider.NewOpenAIFactory(cfg.LLM),
		sessions,
		history,
		m,
		logger.Named("ingest"),
	)
	qaService := service.NewQAService(sessions, history, m, logger.Named("qa"))
	adminService := service.NewAdminService(sessions, history, logger.Named("admin"))

	// Setup router
	router := api.SetupRouter(api.Services{
		Ingest:  ingestService,
		QA:      qaService,
		Admin:   adminService,
		Metrics: m,
	}, api.RouterConfig{
		APIKey:         cfg.Admin.APIKey,
		AllowOrigins:   cfg.Server.AllowOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		RateLimit:      cfg.RateLimit.Enabled,
		RequestsPerMin: cfg.RateLimit.RequestsPerMinute,
		Burst:          cfg.RateLimit.Burst,
	}, logger.Named("http"))

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting docqa server",
			zap.String("address", cfg.Address()),
			zap.String("chat_model", cfg.LLM.ChatModel),
			zap.String("embedding_model", cfg.LLM.EmbeddingModel),
			zap.Bool("history", history != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited", zap.Int("live_sessions_dropped", sessions.Len()))
	return nil
}

package main

import (
	"context"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/services"
	httphandlers "github.com/blaketylerfullerton/aerialintelligence/internal/handlers/http"
	"github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/alert"
	"github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/extractor"
	"github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/middleware"
	"github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/monitoring"
	"github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/repositories"
	"github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/retention"
	"github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/signal"
	"github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/storage"
	"github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/vision"
	"github.com/blaketylerfullerton/aerialintelligence/pkg/config"
	"github.com/blaketylerfullerton/aerialintelligence/pkg/logger"
	"github.com/blaketylerfullerton/aerialintelligence/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/aerialintelligence/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "aerialintelligence",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	assessmentRepo := repoFactory.CreateAssessmentRepository()

	// Initialize monitoring
	var metrics ports.MetricsRecorder = ports.NopMetrics{}
	if cfg.Monitoring.PrometheusEnabled {
		metrics = monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	}

	// Initialize storage
	resultStore, err := storage.NewFileStore(cfg.Retention.ResultsDir, log)
	if err != nil {
		log.Fatalw("failed to create result store", "error", err)
	}

	// Initialize infrastructure adapters
	frameExtractor := extractor.NewFFmpegExtractor(extractor.Config{
		BinaryPath: cfg.Capture.FFmpegPath,
		Quality:    cfg.Capture.Quality,
		MaxWidth:   cfg.Capture.MaxWidth,
		MaxHeight:  cfg.Capture.MaxHeight,
		Timeout:    cfg.Capture.ExtractTimeout,
	}, log)

	visionClient := vision.NewClient(vision.Config{
		APIKey:   cfg.Vision.APIKey,
		APIURL:   cfg.Vision.APIURL,
		AssetURL: cfg.Vision.AssetURL,
		Timeout:  cfg.Vision.Timeout,
	}, log)

	var alertSender ports.AlertSender
	if cfg.Alerts.Enabled {
		alertSender = alert.NewTelegramSender(alert.Config{
			Token:   cfg.Alerts.TelegramToken,
			ChatID:  cfg.Alerts.TelegramChatID,
			Timeout: cfg.Alerts.Timeout,
		}, log)
	}

	alertHub := signal.NewAlertHub(log)

	// Initialize core services
	patternScorer := services.NewPatternScorer()
	contextScorer := services.NewContextScorer(visionClient, log)

	assessor := services.NewAssessmentService(patternScorer, contextScorer, services.AssessmentConfig{
		NotificationThreshold: cfg.Assessment.NotificationThreshold,
		PatternConfidence:     cfg.Assessment.PatternConfidence,
		ContextConfidence:     cfg.Assessment.ContextConfidence,
		AgreementBonus:        cfg.Assessment.AgreementBonus,
		DetailedAnalysis:      cfg.Vision.DetailedAnalysis,
	}, log)

	captureService := services.NewCaptureService(
		frameExtractor,
		visionClient,
		assessor,
		resultStore,
		assessmentRepo,
		alertSender,
		alertHub,
		metrics,
		services.CaptureConfig{
			FrameDir:          cfg.Capture.FrameDir,
			StreamURLTemplate: cfg.Capture.StreamURLTemplate,
			SettleDelay:       cfg.Capture.SettleDelay,
			Task:              cfg.Vision.Task,
			AlertsEnabled:     cfg.Alerts.Enabled,
			AlertsPerMinute:   cfg.Alerts.PerStreamPerMin,
			AlertBurst:        cfg.Alerts.Burst,
		},
		log,
	)

	sessionManager := services.NewSessionManager(captureService, metrics, services.SessionConfig{
		Interval:     cfg.Capture.Interval,
		InitialDelay: cfg.Capture.InitialDelay,
	}, log)

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	// Operator token for the admin API, printed once at startup.
	if token, err := authService.GenerateToken("operator"); err == nil {
		log.Infow("admin API token issued", "token", token, "ttl", cfg.Auth.AccessTokenTTL)
	}

	// Start retention sweeps for frames and result files
	sweeper := retention.NewSweeper([]retention.Target{
		{Dir: cfg.Capture.FrameDir, Pattern: "*.jpg", MaxFiles: cfg.Retention.MaxFrames},
		{Dir: cfg.Retention.ResultsDir, Pattern: "*_classification.json", MaxFiles: cfg.Retention.MaxResults},
	}, cfg.Retention.Interval, metrics, log)
	sweeper.Start(context.Background())

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Global HTTP rate limiting (if enabled)
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	// Media server callbacks (public: the media server does not authenticate)
	hookHandler := httphandlers.NewHookHandler(sessionManager, log)
	hookHandler.SetupRoutes(router)

	// Operator API with authentication
	statusHandler := httphandlers.NewStatusHandler(sessionManager, assessmentRepo)
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	statusHandler.SetupRoutes(api)

	// Live alert feed
	router.GET("/ws/alerts", gin.WrapF(alertHub.HandleWebSocket))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	// Readiness endpoint
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.JSON(503, gin.H{
				"status":       "not_ready",
				"timestamp":    time.Now(),
				"dependencies": "unhealthy",
				"error":        err.Error(),
			})
			return
		}

		c.JSON(200, gin.H{
			"status":       "ready",
			"timestamp":    time.Now(),
			"dependencies": "ok",
		})
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting stream monitor on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	osignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down stream monitor...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}

	sessionManager.StopAll()
	sweeper.Stop()
	alertHub.Close()

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warnw("tracer shutdown failed", "error", err)
	}

	log.Info("Shutdown complete")
}

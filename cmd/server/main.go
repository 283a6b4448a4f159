package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/application"
	"github.com/NaviWasm/service-mapview/internal/config"
	"github.com/NaviWasm/service-mapview/internal/events"
	"github.com/NaviWasm/service-mapview/internal/handler"
	"github.com/NaviWasm/service-mapview/internal/logger"
	"github.com/NaviWasm/service-mapview/internal/middleware"
	"github.com/NaviWasm/service-mapview/internal/overlay"
	"github.com/NaviWasm/service-mapview/internal/repository"
	"github.com/NaviWasm/service-mapview/internal/routing"
)

const serviceName = "service-mapview"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-mapview",
		zap.String("port", cfg.Port),
		zap.String("route_service", cfg.Route.ServiceURL),
		zap.Bool("kafka_enabled", cfg.Kafka.Enabled),
	)

	// Initialize route event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer func() { _ = kafkaPublisher.Close() }()
		publisher = kafkaPublisher
	}

	// Initialize routing client
	routeClient, err := routing.NewClient(routing.Config{
		BaseURL: cfg.Route.ServiceURL,
		Path:    cfg.Route.Path,
		Timeout: cfg.Route.Timeout,
	}, routing.WithLogger(log.Named("routing")))
	if err != nil {
		log.Fatal("failed to create routing client", zap.Error(err))
	}

	// Initialize application services
	overlayOpts := overlay.DefaultOptions()
	overlayOpts.Outline = cfg.View.OverlayOutline
	overlayOpts.Label = cfg.View.OverlayLabel

	viewService := application.NewViewService(
		repository.NewMemoryViewRepository(),
		routeClient,
		publisher,
		application.ViewServiceConfig{
			MaxViews:          cfg.View.MaxViews,
			AnimationDuration: cfg.View.AnimationDuration,
			DisplayRefreshHz:  cfg.View.DisplayRefreshHz,
			Overlay:           overlayOpts,
		},
		log,
	)

	// Initialize HTTP handlers
	systemHandler := handler.NewSystemHandler(viewService, serviceName)
	viewHandler := handler.NewViewHandler(viewService)
	streamHandler := handler.NewStreamHandler(viewService, cfg.HTTP.CORSOrigins, log.Named("stream"))

	// Setup Gin router
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerMinute, time.Minute)

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.HTTP.CORSOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware(limiter))

	// Register routes
	systemHandler.RegisterRoutes(&router.RouterGroup)
	viewHandler.RegisterRoutes(&router.RouterGroup)
	streamHandler.RegisterRoutes(&router.RouterGroup)

	if cfg.Route.StubEnabled {
		navigationService := application.NewNavigationService(viewService.Metrics(), log)
		handler.NewNavigationHandler(navigationService).RegisterRoutes(&router.RouterGroup)
		log.Info("direct route stub enabled", zap.String("path", routing.DefaultPath))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prune idle rate limit windows
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune()
			}
		}
	}()

	// Create HTTP server. WriteTimeout stays unset so renderer streams are
	// not cut off; the stream handler sets its own write deadlines.
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-mapview...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}
	if err := viewService.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to close map views", zap.Error(err))
	}

	log.Info("service-mapview stopped")
}

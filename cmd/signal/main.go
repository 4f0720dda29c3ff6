package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairchat/internal/core/services"
	httphandlers "pairchat/internal/handlers/http"
	"pairchat/internal/infrastructure/middleware"
	"pairchat/internal/infrastructure/monitoring"
	repositories "pairchat/internal/infrastructure/repositories"
	wsserver "pairchat/internal/infrastructure/signal"
	"pairchat/pkg/config"
	"pairchat/pkg/logger"
	"pairchat/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/pairchat/config.yaml",
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
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if err != nil {
		log.Warnw("could not load config, using defaults", "error", err)
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Lifecycle events go to Redis when enabled, otherwise to memory
	publisherFactory := repositories.NewPublisherFactory(cfg, log)
	publisher := publisherFactory.CreateEventPublisher()

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	wsServer := wsserver.NewWebSocketServer(wsserver.OptionsFromConfig(cfg), collector, log)
	lobby := services.NewLobby(services.LobbyConfig{
		InvitationTimeout: cfg.Matchmaking.InvitationTimeout,
		BroadcastDebounce: cfg.Matchmaking.BroadcastDebounce,
		MaxMessageLength:  cfg.Matchmaking.MaxMessageLength,
	}, wsServer, publisher, collector, log)
	wsServer.SetLobby(lobby)

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddLobbyCheck(lobby.Accepting)
	healthChecker.AddPublisherCheck(publisher, cfg.Monitoring.HealthCheckTimeout)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.RequestLogMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.ErrorHandlerMiddleware(log, collector))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))
	httphandlers.NewHealthHandler(healthChecker).SetupRoutes(router)
	httphandlers.NewPresenceHandler(lobby).SetupRoutes(router)

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting pairchat server", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down pairchat server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Readiness fails from here on, and pending invitations stop expiring.
	lobby.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	// Hijacked websocket connections are not covered by srv.Shutdown.
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error closing websocket connections", "error", err)
	} else {
		log.Info("Websocket connections closed")
	}

	if err := publisher.Close(); err != nil {
		log.Errorw("Error closing event publisher", "error", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := tp.Shutdown(flushCtx); err != nil {
		log.Errorw("Error shutting down tracer provider", "error", err)
	}

	log.Info("pairchat server stopped")
}

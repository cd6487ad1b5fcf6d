package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"story-engine/internal/authutils"
	"story-engine/internal/config"
	"story-engine/internal/handler"
	"story-engine/internal/logger"
	"story-engine/internal/middleware"
	"story-engine/internal/service"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	log.Println("Starting story engine...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		Service:  "story-engine",
		Sampling: cfg.LogSampling,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	cfg.LogSummary(zapLogger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	deps, err := buildDependencies(startCtx, cfg, zapLogger)
	cancelStart()
	if err != nil {
		zapLogger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	verifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create JWT verifier", zap.Error(err))
	}

	playService := service.NewPlaySessionService(
		deps.stories,
		deps.sessions,
		deps.saves,
		deps.locker,
		deps.publisher,
		service.Options{AcceptClientState: cfg.AcceptClientState},
		zapLogger,
	)
	playHandler := handler.NewPlaySessionHandler(playService, verifier.VerifyToken, zapLogger)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.EchoZapLogger(zapLogger))
	e.Use(middleware.PrometheusMetrics())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := deps.Ping(ctx); err != nil {
			zapLogger.Warn("Health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, handler.APIError{Message: "unhealthy"})
		}
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	playHandler.RegisterRoutes(e)

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutdown signal received, stopping...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		zapLogger.Error("Graceful shutdown of HTTP server failed", zap.Error(err))
	}
	zapLogger.Info("Story engine stopped")
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortuna/matatena/internal/api/rest"
	"github.com/fortuna/matatena/internal/api/websocket"
	"github.com/fortuna/matatena/internal/app"
	"github.com/fortuna/matatena/internal/config"
	"github.com/fortuna/matatena/internal/metrics"
	"github.com/fortuna/matatena/internal/render"
)

const (
	serviceName    = "matatena"
	serviceVersion = "1.0.0"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	logger.Info("Starting service", slog.String("service", serviceName), slog.String("version", serviceVersion))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := metrics.NewRecorder()

	components, err := app.New(ctx, cfg, logger, recorder)
	if err != nil {
		logger.Error("Failed to start", slog.Any("err", err))
		os.Exit(1)
	}
	defer components.Close()

	templates, err := render.NewTemplates()
	if err != nil {
		logger.Error("Failed to load templates", slog.Any("err", err))
		os.Exit(1)
	}

	renderer := render.NewChromeRenderer(cfg.ChromePath, 0, logger)
	defer renderer.Close()
	logger.Info("✓ PDF renderer ready")

	checks := map[string]rest.HealthChecker{"database": components.DB}
	if components.Redis != nil {
		checks["redis"] = components.Redis
	}

	handler := rest.NewHandler(rest.HandlerConfig{
		Collections: components.Collections,
		Templates:   templates,
		PDF:         renderer,
		Checks:      checks,
		Stats:       components.Engine,
		Logger:      logger,
	})
	watcher := websocket.NewWatcher(components.Collections, cfg.WSPollInterval, 0, logger)
	router := rest.NewRouter(handler, watcher, recorder, logger)

	server := rest.NewServer(cfg.Port, handler, router)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", slog.Any("err", err))
			cancel()
		}
	}()

	logger.Info("✓ HTTP server listening", slog.String("addr", "http://0.0.0.0:"+cfg.Port))

	// Wait for interrupt signal
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.Any("err", err))
	}

	logger.Info("Stopped", slog.String("service", serviceName))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"MOTION_CAPTURE/go-backend/internal/config"
	"MOTION_CAPTURE/go-backend/internal/database"
	"MOTION_CAPTURE/go-backend/internal/handlers"
	"MOTION_CAPTURE/go-backend/internal/services"
)

const shutdownTimeout = 10 * time.Second

func ServeCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload and progress HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.HTTPPort = port
			}
			if url, _ := cmd.Flags().GetString("detector"); url != "" {
				cfg.DetectorURL = url
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().String("port", "", "HTTP port (overrides HTTP_PORT)")
	cmd.Flags().String("detector", "", "Landmark detector gRPC address (overrides DETECTOR_URL)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting motion capture server",
		"version", version,
		"http_port", cfg.HTTPPort,
		"detector", cfg.DetectorURL,
		"environment", cfg.Environment)

	detector, err := services.NewLandmarkClient(cfg.DetectorURL, cfg.DetectorTimeout)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, detector.Close()) }()

	if !detector.HealthCheck() {
		logger.Warn("Landmark detector is not reachable yet, frames will be recorded as undetected until it is", "url", cfg.DetectorURL)
	}

	var history *database.Store
	if cfg.HistoryEnabled() {
		store, openErr := database.Open(ctx, cfg, logger)
		if openErr != nil {
			logger.Warn("Job history unavailable, continuing without it", "error", openErr)
		} else {
			history = store
			defer func() { err = multierr.Append(err, history.Close()) }()
		}
	}

	docs, err := services.NewDocumentStore(cfg.OutputDir)
	if err != nil {
		return err
	}

	metrics := services.NewMetrics()
	controllerCfg := services.JobControllerConfig{
		Reader:  services.NewFFmpegReader(cfg.FFmpegPath, cfg.FFprobePath),
		Source:  detector,
		Docs:    docs,
		Board:   services.NewStatusBoard(),
		Metrics: metrics,
		Logger:  logger,
	}
	// a nil *Store must not become a non-nil interface
	var historyLister handlers.HistoryLister
	if history != nil {
		controllerCfg.History = history
		historyLister = history
	}

	controller, err := services.NewJobController(controllerCfg)
	if err != nil {
		return err
	}

	server, err := handlers.NewServer(controller, docs, historyLister, detector, metrics, handlers.Options{
		UploadDir:       cfg.UploadDir,
		StaticDir:       cfg.StaticDir,
		CORSOrigins:     cfg.CORSOrigins,
		MaxUploadBytes:  int64(cfg.MaxUploadSizeMB) << 20,
		UploadTokenHash: cfg.UploadTokenHash,
		WSPollInterval:  cfg.WSPollInterval,
		Version:         version,
	}, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening",
			"addr", httpServer.Addr,
			"upload", fmt.Sprintf("http://localhost:%s/upload", cfg.HTTPPort),
			"websocket", fmt.Sprintf("ws://localhost:%s/ws", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("http shutdown: %w", err))
		} else {
			logger.Info("HTTP server gracefully stopped")
		}

		closed := server.Clients().CloseAll()
		logger.Info("Closed WebSocket connections", "count", closed)

		if err := controller.Shutdown(shutdownCtx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("job shutdown: %w", err))
		}
		return errs
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Goodbye!")
	return nil
}

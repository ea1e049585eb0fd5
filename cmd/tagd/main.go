package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldside/tagd/internal/api"
	"github.com/fieldside/tagd/internal/clips"
	"github.com/fieldside/tagd/internal/config"
	"github.com/fieldside/tagd/internal/db"
	"github.com/fieldside/tagd/internal/events"
	"github.com/fieldside/tagd/internal/export"
	"github.com/fieldside/tagd/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting tagd", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := events.NewRepository(database.Conn())
	eventSvc := events.NewService(repo, logger)

	var extractor clips.ExtractService
	transcoder, err := clips.NewFFmpeg(cfg.FFmpegPath(), cfg.FFmpegTimeout(), logger)
	if err != nil {
		logger.Warn("ffmpeg unavailable, clip extraction disabled", "error", err)
	} else {
		extractor = clips.NewExtractor(transcoder, cfg.ExtractConcurrency(), logger)
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		Version:      config.Version,
		CORSOrigin:   cfg.CORSOrigin(),
		ClipsDir:     cfg.ClipsDir(),
		UploadsDir:   cfg.UploadsDir(),
		EventService: eventSvc,
		Extractor:    extractor,
		ExportCSV:    export.ToCSV,
		ExportXLSX:   export.ToXLSX,
		Logger:       logger,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

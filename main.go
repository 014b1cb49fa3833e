package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freekieb7/ember/config"
	"github.com/freekieb7/ember/filesystem"
	"github.com/freekieb7/ember/gallery"
	"github.com/freekieb7/ember/http"
	"github.com/freekieb7/ember/schedule"
	"github.com/freekieb7/ember/telemetry"
)

const (
	serviceVersion  = "0.1.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, config.ErrUsage) {
			slog.Error("ember stopped", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args, os.Stderr)
	if err != nil {
		return err
	}

	// Handle SIGINT (CTRL+C) and SIGTERM gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: serviceVersion,
		Level:          cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()
	logger := providers.Logger

	if err := filesystem.EnsureDirectory(cfg.ImageDir); err != nil {
		return err
	}

	g, err := gallery.New(gallery.Options{
		Files:       filesystem.NewLocalFileSystem(cfg.ImageDir),
		Downloader:  gallery.NewHTTPDownloader(cfg.DownloadTimeout, cfg.MaxImageSize),
		Logger:      logger,
		TemplateDir: cfg.TemplateDir,
	})
	if err != nil {
		return err
	}
	loaded, err := g.Load(ctx)
	if err != nil {
		return err
	}
	logger.Info("images loaded", "count", loaded, "dir", cfg.ImageDir)

	router := http.NewRouter()
	router.Use(http.RecoverMiddleware(logger), http.LoggingMiddleware(logger))
	g.Register(&router)

	server := http.NewServer(cfg.ServiceName, cfg.Server, router.Handler(),
		http.WithLogger(logger),
		http.WithMeterProvider(providers.MeterProvider),
		http.WithTracerProvider(providers.TracerProvider),
	)
	if err := server.Listen(); err != nil {
		return err
	}

	scheduler := schedule.NewScheduler(logger)
	if err := scheduler.AddJob(g.RescanJob(cfg.Rescan)); err != nil {
		return err
	}
	if err := scheduler.AddJob(statsJob(server, logger, cfg.StatsInterval)); err != nil {
		return err
	}

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(schedulerCtx)
	}()
	defer func() {
		stopScheduler()
		<-schedulerDone
	}()

	serverErrorChannel := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr().String())
		serverErrorChannel <- server.Serve()
	}()

	// Wait for interruption.
	select {
	case err := <-serverErrorChannel:
		return err
	case <-ctx.Done():
		stop()
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-serverErrorChannel; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func statsJob(server *http.Server, logger *slog.Logger, interval time.Duration) *schedule.Job {
	return schedule.NewJob("server-stats").
		WithInterval(interval).
		WithTasks(func(context.Context) error {
			stats := server.Stats()
			logger.Info("server stats",
				"admitted", stats.Admitted,
				"pending", stats.Pending,
				"ready", stats.Ready,
				"busy", stats.Busy,
				"accepted", stats.Accepted,
				"rejected", stats.Rejected,
				"served", stats.Served,
			)
			return nil
		})
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"photo-ingest/internal/app"
	"photo-ingest/internal/filesystem"
	"photo-ingest/internal/handlers"
	"photo-ingest/internal/logging"
	"photo-ingest/internal/media"
	"photo-ingest/internal/memory"
	"photo-ingest/internal/metrics"
	"photo-ingest/internal/middleware"
	"photo-ingest/internal/startup"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
)

// NewHandler builds the API router wrapped in the logging and compression
// middleware. Metrics middleware runs inside the router so it can label
// requests by route template.
func NewHandler(a *app.App) http.Handler {
	cfg := a.Config()
	h := handlers.New(a)

	router := handlers.NewRouter(h)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	startup.LogHTTPRoutes(router, cfg.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = cfg.LogHealthChecks
	logged := middleware.Logger(loggingConfig)(router)

	return middleware.Compression(middleware.DefaultCompressionConfig())(logged)
}

// Run starts the API server and blocks until ctx is cancelled, then shuts
// everything down in reverse order.
func Run(ctx context.Context) error {
	startTime := time.Now()

	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, HEIF uploads will be rejected: %v", err)
	}
	defer media.ShutdownVips()

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, runtime.Version())
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	cfg, err := startup.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	a, err := app.New(ctx, cfg,
		app.WithTranscoder(media.VipsTranscoder{}),
		app.WithMemoryMonitor(monitor),
	)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Warn("Close error: %v", err)
		}
	}()
	a.StartFeed(ctx)

	collector := metrics.NewCollector(a.Database(), collectorInterval)
	collector.Start()

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     NewHandler(a),
		ReadTimeout: 60 * time.Second,
		// Uploads of large batches stream their result only at the end.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", handlers.New(a).MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            cfg.Port,
		MetricsPort:     cfg.MetricsPort,
		MetricsEnabled:  cfg.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	var serveErr error
	select {
	case <-ctx.Done():
		startup.LogShutdownInitiated(fmt.Sprint(context.Cause(ctx)))
	case serveErr = <-errCh:
		startup.LogShutdownInitiated("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownComplete()
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

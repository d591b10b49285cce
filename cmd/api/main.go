package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfman30/lead-intake/cmd/mainconfig"
	"github.com/wolfman30/lead-intake/internal/app/bootstrap"
	appconfig "github.com/wolfman30/lead-intake/internal/config"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lead-intake API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"lead_store", cfg.LeadStore,
		"enrichment_queue", cfg.EnrichmentQueue,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("api server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfigIfNeeded(ctx, cfg)
	if err != nil {
		return err
	}

	// The inline worker outlives the signal context so Shutdown can drain it.
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()

	app, err := bootstrap.NewAPI(workerCtx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	app.Start(workerCtx)

	srv := newServer(cfg.Port, app.Handler)
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = app.Shutdown(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func newServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

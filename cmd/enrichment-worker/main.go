package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/lead-intake/cmd/mainconfig"
	"github.com/wolfman30/lead-intake/internal/app/bootstrap"
	appconfig "github.com/wolfman30/lead-intake/internal/config"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("enrichment worker exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}

	metricsHandler, m := bootstrap.BuildMetrics()
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()

	worker, closeWorker, err := bootstrap.NewEnrichmentWorker(workerCtx, cfg, &awsCfg, m, logger)
	if err != nil {
		return err
	}
	defer closeWorker()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           opsRouter(metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("enrichment worker started", "workers", cfg.WorkerCount, "queue_url", cfg.EnrichmentQueueURL)
	worker.Start(workerCtx)
	<-ctx.Done()

	logger.Info("shutting down enrichment worker...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	stopErr := worker.Stop(shutdownCtx)
	if stopErr != nil {
		logger.Error("enrichment worker shutdown timed out", "error", stopErr)
	} else {
		logger.Info("enrichment worker stopped")
	}
	return errors.Join(stopErr, srv.Shutdown(shutdownCtx))
}

func opsRouter(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metricsHandler)
	return r
}

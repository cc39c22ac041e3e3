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

	"github.com/kirillkom/passage-assistant/internal/bootstrap"
	"github.com/kirillkom/passage-assistant/internal/config"
	"github.com/kirillkom/passage-assistant/internal/observability/logging"
	"github.com/kirillkom/passage-assistant/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	logging.Install(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{WithQueue: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	timeout := time.Duration(cfg.WorkerProcessTimeout) * time.Second
	slog.Info("worker_subscribed", "subject", cfg.ChunkSubject)
	err = app.Queue.SubscribeChunkRequests(ctx, func(handlerCtx context.Context, workID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, timeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartDocument()
		entry, err := app.Processor.ProcessByID(processCtx, workID)
		workerMetrics.FinishDocument(service, string(entry.Status), entry.Parents, entry.Children, time.Since(start), err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_error", "error", err)
		stop()
	}
}

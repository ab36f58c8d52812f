package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stylize/internal/bootstrap"
	"stylize/internal/infra"
	"stylize/internal/pipeline"
)

// The worker drains pending jobs from the shared postgres store. Jobs
// submitted by api instances whose own queues were full end up here.
func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, infra.LogOptionsFromConfig(cfg))

	if cfg.StoreBackend != infra.StorePostgres {
		logger.Fatal().Str("store", cfg.StoreBackend).Msg("worker: a postgres store is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := infra.InitTracing(cfg.OTelExporter, "stylize-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: tracing setup failed")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	comps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build components")
	}
	defer comps.Close()

	processor, err := comps.NewProcessor(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build processor")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	pool := pipeline.NewPool(processor, cfg.WorkerCount, cfg.WorkerQueueSize, &logger)
	pool.Start(workerCtx)

	logger.Info().Int("workers", cfg.WorkerCount).Str("provider", cfg.ImageProvider).Msg("worker: started")

	sweeper := pipeline.NewSweeper(comps.Store, pool, cfg.SweepInterval, cfg.SweepStaleAfter, &logger)
	if err := sweeper.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: sweeper stopped")
	}

	cancelWorkers()
	pool.Wait()
	logger.Info().Msg("worker: stopped")
}

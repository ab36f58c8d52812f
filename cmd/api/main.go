package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stylize/internal/bootstrap"
	"stylize/internal/http/handlers"
	httpapi "stylize/internal/http/httpapi"
	"stylize/internal/infra"
	"stylize/internal/pipeline"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, infra.LogOptionsFromConfig(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := infra.InitTracing(cfg.OTelExporter, "stylize-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("api: tracing setup failed")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	comps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to build components")
	}
	defer comps.Close()

	processor, err := comps.NewProcessor(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to build processor")
	}

	// Workers are cancelled only after the HTTP server has drained.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	pool := pipeline.NewPool(processor, cfg.WorkerCount, cfg.WorkerQueueSize, &logger)
	pool.Start(workerCtx)

	svc, err := pipeline.NewService(pipeline.ServiceOptions{
		Store: comps.Store,
		Admission: pipeline.NewAdmission(comps.Store, pipeline.Limits{
			MaxRequests: cfg.RateLimitMaxRequests,
			Window:      cfg.RateLimitWindow,
			MaxActive:   cfg.MaxActiveJobs,
		}, time.Now),
		Assembler:  comps.Assembler,
		Dispatcher: pool,
		Cache:      comps.Cache,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to build service")
	}

	app := handlers.NewApp(svc, logger)
	app.HealthCheck = comps.Ping

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		JWTSecret:          cfg.JWTSecret,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.HTTPRateLimitPerMin,
		StaticDir:          comps.StaticDir,
		StaticPrefix:       "/static",
		Logger:             logger,
	})
	server := infra.NewHTTPServer(cfg, router)
	sweeper := pipeline.NewSweeper(comps.Store, pool, cfg.SweepInterval, cfg.SweepStaleAfter, &logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Str("provider", cfg.ImageProvider).Msg("api: listening")
		return server.Start()
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api: stopped with error")
	}

	cancelWorkers()
	pool.Wait()
	logger.Info().Msg("api: stopped")
}

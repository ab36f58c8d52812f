// Package bootstrap assembles the pipeline components selected by
// configuration. It is shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stylize/db/migrations"
	"stylize/internal/adapter/cache"
	"stylize/internal/adapter/repo"
	"stylize/internal/domain"
	"stylize/internal/infra"
	"stylize/internal/infra/credentials"
	"stylize/internal/pipeline"
	"stylize/internal/prompt"
	"stylize/internal/providers/banana"
	"stylize/internal/providers/dalle"
	"stylize/internal/providers/image"
	"stylize/internal/providers/synthetic"
	"stylize/internal/storage"
)

// Components holds the long-lived dependencies of a process.
type Components struct {
	Store     domain.JobStore
	DB        *pgxpool.Pool
	Cache     pipeline.StatusCache
	Results   storage.ResultStore
	Generator image.Generator
	Assembler *prompt.Assembler
	// StaticDir is the filesystem result directory served over HTTP, or ""
	// when results live in object storage.
	StaticDir string

	closers []func()
}

// Build opens every component configured in cfg. Close releases them.
func Build(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Components, error) {
	c := &Components{}
	if err := c.openStore(ctx, cfg, logger); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.openResults(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	c.openCache(cfg, logger)

	templates := prompt.DefaultTemplates()
	if cfg.StyleTemplatesPath != "" {
		loaded, err := prompt.LoadTemplates(cfg.StyleTemplatesPath)
		if err != nil {
			c.Close()
			return nil, err
		}
		templates = loaded
	}
	c.Assembler = prompt.NewAssembler(templates, nil)

	gen, err := c.openGenerator(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Generator = image.NewLimited(gen, cfg.ProviderMaxConcurrency)
	return c, nil
}

// Close releases components in reverse order of opening.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Ping reports whether the job store is reachable.
func (c *Components) Ping(ctx context.Context) error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Ping(ctx)
}

// NewProcessor builds a job processor over the components.
func (c *Components) NewProcessor(cfg *infra.Config, logger *infra.Logger) (*pipeline.Processor, error) {
	return pipeline.NewProcessor(pipeline.ProcessorOptions{
		Store:          c.Store,
		Generator:      c.Generator,
		Results:        c.Results,
		NegativePrompt: c.Assembler.NegativePrompt(),
		KeepPayload:    cfg.StoreResultPayload,
		Logger:         logger,
	})
}

func (c *Components) openStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) error {
	if cfg.StoreBackend != infra.StorePostgres {
		logger.Warn().Msg("bootstrap: using in-memory job store, jobs are lost on restart")
		c.Store = repo.NewMemoryJobRepository()
		return nil
	}
	if err := infra.MigrateUp(cfg.DatabaseURL, migrations.FS, logger); err != nil {
		return err
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: db connection failed: %w", err)
	}
	c.closers = append(c.closers, pool.Close)
	c.DB = pool
	c.Store = repo.NewJobRepository(infra.NewSQLRunner(pool, logger))
	return nil
}

func (c *Components) openResults(ctx context.Context, cfg *infra.Config) error {
	switch cfg.StorageBackend {
	case infra.StorageS3:
		s3, err := storage.NewS3Store(storage.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			URLExpiry: cfg.S3URLExpiry,
		})
		if err != nil {
			return err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return err
		}
		c.Results = s3
	default:
		path := cfg.StoragePath
		if !filepath.IsAbs(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		fs, err := storage.NewFileStore(path, cfg.StorageBaseURL)
		if err != nil {
			return fmt.Errorf("bootstrap: failed to configure storage: %w", err)
		}
		c.Results = fs
		c.StaticDir = fs.BasePath()
	}
	return nil
}

func (c *Components) openCache(cfg *infra.Config, logger infra.Logger) {
	if cfg.RedisAddr == "" {
		return
	}
	client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	c.closers = append(c.closers, func() { _ = client.Close() })
	c.Cache = cache.NewRedisStatusCache(client, cfg.StatusCacheTTL, &logger)
}

// openGenerator builds the configured provider. Keys missing from the
// environment are looked up in integration_tokens; when none is found the
// synthetic generator is used instead.
func (c *Components) openGenerator(ctx context.Context, cfg *infra.Config, logger infra.Logger) (image.Generator, error) {
	var creds *credentials.Store
	if c.DB != nil {
		creds = credentials.NewStore(infra.NewSQLRunner(c.DB, logger))
	}
	switch cfg.ImageProvider {
	case infra.ProviderBanana:
		apiKey, err := creds.Resolve(ctx, credentials.ProviderBanana, cfg.BananaAPIKey)
		if err != nil {
			logger.Warn().Err(err).Msg("bootstrap: failed to load banana api key from store")
		}
		modelKey, err := creds.Resolve(ctx, credentials.ProviderBananaModel, cfg.BananaModelKey)
		if err != nil {
			logger.Warn().Err(err).Msg("bootstrap: failed to load banana model key from store")
		}
		client, err := banana.NewClient(banana.Options{
			APIKey:       apiKey,
			ModelKey:     modelKey,
			BaseURL:      cfg.BananaBaseURL,
			PollInterval: cfg.BananaPollInterval,
			PollAttempts: cfg.BananaPollAttempts,
			HTTPClient:   &http.Client{Timeout: 60 * time.Second},
			Logger:       &logger,
		})
		if errors.Is(err, banana.ErrMissingCredentials) {
			return c.syntheticFallback(cfg, logger, infra.ProviderBanana), nil
		}
		if err != nil {
			return nil, err
		}
		logger.Info().Str("provider", client.Name()).Msg("bootstrap: image provider ready")
		return client, nil

	case infra.ProviderDalle:
		apiKey, err := creds.Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
		if err != nil {
			logger.Warn().Err(err).Msg("bootstrap: failed to load openai api key from store")
		}
		provider, err := dalle.New(dalle.Options{
			APIKey:  apiKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIImageModel,
			Logger:  &logger,
		})
		if errors.Is(err, dalle.ErrMissingAPIKey) {
			return c.syntheticFallback(cfg, logger, infra.ProviderDalle), nil
		}
		if err != nil {
			return nil, err
		}
		logger.Info().Str("provider", provider.Name()).Msg("bootstrap: image provider ready")
		return provider, nil
	}
	return synthetic.New(cfg.SyntheticDelay, &logger), nil
}

func (c *Components) syntheticFallback(cfg *infra.Config, logger infra.Logger, provider string) image.Generator {
	logger.Warn().Str("provider", provider).Msg("bootstrap: provider credentials missing, using synthetic generation")
	return synthetic.New(cfg.SyntheticDelay, &logger)
}

package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Image providers.
const (
	ProviderBanana    = "banana"
	ProviderDalle     = "dalle"
	ProviderSynthetic = "synthetic"
)

// Storage backends.
const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	StoreBackend string

	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	MaxActiveJobs        int
	HTTPRateLimitPerMin  int
	CORSAllowedOrigins   []string

	WorkerCount            int
	WorkerQueueSize        int
	ProviderMaxConcurrency int
	SweepInterval          time.Duration
	SweepStaleAfter        time.Duration

	ImageProvider      string
	BananaAPIKey       string
	BananaModelKey     string
	BananaBaseURL      string
	BananaPollInterval time.Duration
	BananaPollAttempts int
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIImageModel   string
	SyntheticDelay     time.Duration

	StorageBackend string
	StoragePath    string
	StorageBaseURL string
	S3Endpoint     string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool
	S3URLExpiry    time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	StatusCacheTTL time.Duration

	StyleTemplatesPath string
	StoreResultPayload bool
	OTelExporter       string

	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// A .env file in the working directory is read first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")
	databaseURL := os.Getenv("DATABASE_URL")
	storeDefault := StoreMemory
	if databaseURL != "" {
		storeDefault = StorePostgres
	}

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: databaseURL,
		JWTSecret:   os.Getenv("JWT_SECRET"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", storeDefault)),

		RateLimitMaxRequests: getEnvInt("RATE_LIMIT_MAX_REQUESTS", 10),
		RateLimitWindow:      time.Millisecond * time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MS", 60000)),
		MaxActiveJobs:        getEnvInt("MAX_ACTIVE_JOBS", 3),
		HTTPRateLimitPerMin:  getEnvInt("HTTP_RATE_LIMIT_PER_MINUTE", 120),
		CORSAllowedOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		WorkerCount:            getEnvInt("WORKER_COUNT", 4),
		WorkerQueueSize:        getEnvInt("WORKER_QUEUE_SIZE", 64),
		ProviderMaxConcurrency: getEnvInt("PROVIDER_MAX_CONCURRENCY", 4),
		SweepInterval:          getEnvDuration("SWEEP_INTERVAL", 5*time.Second),
		SweepStaleAfter:        getEnvDuration("SWEEP_STALE_AFTER", 30*time.Second),

		ImageProvider:      strings.ToLower(getEnv("IMAGE_PROVIDER", ProviderBanana)),
		BananaAPIKey:       os.Getenv("BANANA_API_KEY"),
		BananaModelKey:     os.Getenv("BANANA_MODEL_KEY"),
		BananaBaseURL:      getEnv("BANANA_BASE_URL", "https://api.banana.dev"),
		BananaPollInterval: time.Millisecond * time.Duration(getEnvInt("BANANA_POLL_INTERVAL_MS", 2000)),
		BananaPollAttempts: getEnvInt("BANANA_POLL_ATTEMPTS", 30),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIImageModel:   getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		SyntheticDelay:     getEnvDuration("SYNTHETIC_DELAY", 0),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageFilesystem)),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:       getEnvBool("S3_USE_SSL", true),
		S3URLExpiry:    getEnvDuration("S3_URL_EXPIRY", 24*time.Hour),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		StatusCacheTTL: getEnvDuration("STATUS_CACHE_TTL", time.Hour),

		StyleTemplatesPath: os.Getenv("STYLE_TEMPLATES_PATH"),
		StoreResultPayload: getEnvBool("STORE_RESULT_PAYLOAD", false),
		OTelExporter:       strings.ToLower(getEnv("OTEL_EXPORTER", "none")),

		LogFile:       os.Getenv("LOG_FILE"),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 14),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.ImageProvider {
	case ProviderBanana, ProviderDalle, ProviderSynthetic:
	default:
		return fmt.Errorf("unknown IMAGE_PROVIDER %q", c.ImageProvider)
	}
	switch c.StorageBackend {
	case StorageFilesystem:
	case StorageS3:
		if c.S3Endpoint == "" || c.S3Bucket == "" {
			return errors.New("S3_ENDPOINT and S3_BUCKET are required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.OTelExporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("unknown OTEL_EXPORTER %q", c.OTelExporter)
	}
	if c.RateLimitMaxRequests <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("rate limit requests and window must be positive")
	}
	if c.MaxActiveJobs <= 0 {
		return errors.New("MAX_ACTIVE_JOBS must be positive")
	}
	if c.WorkerCount <= 0 || c.WorkerQueueSize < 0 {
		return errors.New("WORKER_COUNT must be positive and WORKER_QUEUE_SIZE non-negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

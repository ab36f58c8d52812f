package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("IMAGE_PROVIDER", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Fatalf("StoreBackend = %q, want %q", cfg.StoreBackend, StoreMemory)
	}
	if cfg.RateLimitMaxRequests != 10 || cfg.RateLimitWindow != time.Minute {
		t.Fatalf("rate limit = %d per %s", cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
	}
	if cfg.MaxActiveJobs != 3 {
		t.Fatalf("MaxActiveJobs = %d, want 3", cfg.MaxActiveJobs)
	}
	if cfg.BananaPollInterval != 2*time.Second || cfg.BananaPollAttempts != 30 {
		t.Fatalf("banana poll = %d x %s", cfg.BananaPollAttempts, cfg.BananaPollInterval)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL = %q", cfg.StorageBaseURL)
	}
	if cfg.ImageProvider != ProviderBanana {
		t.Fatalf("ImageProvider = %q", cfg.ImageProvider)
	}
}

func TestLoadConfigDatabaseSelectsPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORE_BACKEND", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreBackend != StorePostgres {
		t.Fatalf("StoreBackend = %q, want %q", cfg.StoreBackend, StorePostgres)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if want := "http://localhost:1919/static"; cfg.StorageBaseURL != want {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, want)
	}
}

func TestLoadConfigParsesTypedValues(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "250ms")
	t.Setenv("S3_USE_SSL", "false")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "1500")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SweepInterval != 250*time.Millisecond {
		t.Fatalf("SweepInterval = %s", cfg.SweepInterval)
	}
	if cfg.S3UseSSL {
		t.Fatalf("S3UseSSL = true, want false")
	}
	if cfg.RateLimitWindow != 1500*time.Millisecond {
		t.Fatalf("RateLimitWindow = %s", cfg.RateLimitWindow)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres", "DATABASE_URL": ""}},
		{"unknown provider", map[string]string{"IMAGE_PROVIDER": "midjourney"}},
		{"s3 without bucket", map[string]string{"STORAGE_BACKEND": "s3", "S3_ENDPOINT": "minio:9000", "S3_BUCKET": ""}},
		{"zero active cap", map[string]string{"MAX_ACTIVE_JOBS": "0"}},
		{"unknown exporter", map[string]string{"OTEL_EXPORTER": "jaeger"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("LoadConfig returned nil error")
			}
		})
	}
}

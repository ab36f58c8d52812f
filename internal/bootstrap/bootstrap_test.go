package bootstrap

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"stylize/internal/infra"
	"stylize/internal/providers/image"
)

func localConfig(t *testing.T, provider string) *infra.Config {
	t.Helper()
	return &infra.Config{
		StoreBackend:           infra.StoreMemory,
		StorageBackend:         infra.StorageFilesystem,
		StoragePath:            t.TempDir(),
		StorageBaseURL:         "http://localhost:8080/static",
		ImageProvider:          provider,
		ProviderMaxConcurrency: 2,
	}
}

func providerName(t *testing.T, gen image.Generator) string {
	t.Helper()
	named, ok := gen.(image.Named)
	if !ok {
		t.Fatalf("generator %T has no name", gen)
	}
	return named.Name()
}

func TestBuildLocalComponents(t *testing.T) {
	cfg := localConfig(t, infra.ProviderSynthetic)
	comps, err := Build(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	defer comps.Close()

	if comps.Store == nil || comps.Results == nil || comps.Assembler == nil {
		t.Fatalf("components incomplete: %+v", comps)
	}
	if comps.Cache != nil {
		t.Fatalf("cache configured without REDIS_ADDR")
	}
	if comps.StaticDir != cfg.StoragePath {
		t.Fatalf("StaticDir = %q, want %q", comps.StaticDir, cfg.StoragePath)
	}
	if got := providerName(t, comps.Generator); got != "synthetic" {
		t.Fatalf("provider = %q, want synthetic", got)
	}
	if err := comps.Ping(context.Background()); err != nil {
		t.Fatalf("Ping without database: %v", err)
	}
	if _, err := comps.NewProcessor(cfg, nil); err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
}

func TestBuildFallsBackWithoutCredentials(t *testing.T) {
	for _, provider := range []string{infra.ProviderBanana, infra.ProviderDalle} {
		comps, err := Build(context.Background(), localConfig(t, provider), zerolog.Nop())
		if err != nil {
			t.Fatalf("%s: Build returned error: %v", provider, err)
		}
		if got := providerName(t, comps.Generator); got != "synthetic" {
			t.Fatalf("%s: provider = %q, want synthetic fallback", provider, got)
		}
		comps.Close()
	}
}

func TestBuildRejectsMissingTemplates(t *testing.T) {
	cfg := localConfig(t, infra.ProviderSynthetic)
	cfg.StyleTemplatesPath = "/nonexistent/styles.yaml"
	if _, err := Build(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing template file")
	}
}

package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaultStorageBaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:8080/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigRequiresDatabaseForPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoadConfigMemoryStoreSkipsDatabase(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreDriver != "memory" {
		t.Fatalf("StoreDriver = %q, want %q", cfg.StoreDriver, "memory")
	}
	if cfg.Pipeline.Cost("shot_image") != 1 || cfg.Pipeline.Cost("storyline") != 0 {
		t.Fatalf("unexpected default costs: %#v", cfg.Pipeline.Costs)
	}
}

func TestLoadConfigRequiresBucketForS3(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("S3_BUCKET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without S3_BUCKET")
	}
}

func TestLoadConfigPipelineOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	body := []byte("fan_out_limit: 8\nprovider_rate_per_second: 0.5\ngenerating_timeout: 90s\ncosts:\n  shot_audio: 3\n  storyline: 2\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("PIPELINE_CONFIG", path)
	t.Setenv("PIPELINE_FAN_OUT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Pipeline.FanOutLimit != 8 {
		t.Fatalf("FanOutLimit = %d, want 8", cfg.Pipeline.FanOutLimit)
	}
	if cfg.Pipeline.ProviderRate != 0.5 {
		t.Fatalf("ProviderRate = %v, want 0.5", cfg.Pipeline.ProviderRate)
	}
	if cfg.Pipeline.GeneratingTimeout != 90*time.Second {
		t.Fatalf("GeneratingTimeout = %s, want 90s", cfg.Pipeline.GeneratingTimeout)
	}
	if cfg.Pipeline.Cost("shot_audio") != 3 || cfg.Pipeline.Cost("storyline") != 2 || cfg.Pipeline.Cost("shot_image") != 1 {
		t.Fatalf("unexpected merged costs: %#v", cfg.Pipeline.Costs)
	}
}

func TestLoadConfigRejectsNegativeCost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(path, []byte("costs:\n  shot_image: -1\n"), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("PIPELINE_CONFIG", path)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for negative cost")
	}
}

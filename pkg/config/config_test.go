package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig("/data/chr1.hicm")

	if cfg.Version != CurrentConfigVersion {
		t.Errorf("expected version %d, got %d", CurrentConfigVersion, cfg.Version)
	}
	if cfg.Location != "/data/chr1.hicm" {
		t.Errorf("expected location /data/chr1.hicm, got %s", cfg.Location)
	}
	if cfg.CacheCapacity != 200 {
		t.Errorf("expected cache capacity 200, got %d", cfg.CacheCapacity)
	}
	if cfg.EvictionPolicy != "clock" {
		t.Errorf("expected clock eviction, got %s", cfg.EvictionPolicy)
	}
	if !cfg.VerifyMagic {
		t.Errorf("expected magic verification to be on by default")
	}
	if cfg.HTTPTimeoutDuration() != 30*time.Second {
		t.Errorf("expected 30s HTTP timeout, got %s", cfg.HTTPTimeoutDuration())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"version":       func(c *Config) { c.Version = 0 },
		"location":      func(c *Config) { c.Location = "" },
		"source":        func(c *Config) { c.Source = "tape" },
		"http timeout":  func(c *Config) { c.HTTPTimeout = -1 },
		"capacity":      func(c *Config) { c.CacheCapacity = 0 },
		"policy":        func(c *Config) { c.EvictionPolicy = "random" },
		"lock stripes":  func(c *Config) { c.LockStripes = 0 },
		"max view size": func(c *Config) { c.MaxViewCells = -5 },
		"log level":     func(c *Config) { c.LogLevel = "loud" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig("matrix.hicm")
			cfg.Update(mutate)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blockmatrix.json")

	cfg := NewDefaultConfig("https://example.org/chr2.hicm")
	cfg.Update(func(c *Config) {
		c.Source = "http"
		c.CacheCapacity = 512
		c.EvictionPolicy = "lru"
		c.LockStripes = 8
	})

	if err := cfg.Save(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if diff := cmp.Diff(cfg.Snapshot(), loaded.Snapshot(), cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Errorf("loaded config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigAcceptsComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blockmatrix.jsonc")

	data := `{
	// served by the lab file server
	"version": 1,
	"location": "/srv/hic/chr1_chr1.hicm",
	"cache_capacity": 64, /* small box */
	"eviction_policy": "fifo",
}
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load JSONC config: %v", err)
	}
	if cfg.CacheCapacity != 64 || cfg.EvictionPolicy != "fifo" {
		t.Errorf("unexpected values: capacity=%d policy=%s", cfg.CacheCapacity, cfg.EvictionPolicy)
	}
	// Missing fields keep their defaults
	if cfg.LockStripes != 64 || !cfg.VerifyMagic {
		t.Errorf("defaults were not preserved: stripes=%d verify=%v", cfg.LockStripes, cfg.VerifyMagic)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadConfig(filepath.Join(dir, "missing.json")); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}

	for name, data := range map[string]string{
		"syntax":        `{"location": `,
		"unknown field": `{"location": "m.hicm", "wal_dir": "/tmp"}`,
		"invalid value": `{"location": "m.hicm", "cache_capacity": -1}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.json")
			if err := os.WriteFile(path, []byte(data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BLOCKMATRIX_LOCATION", "/env/matrix.hicm")
	t.Setenv("BLOCKMATRIX_SOURCE", "mmap")
	t.Setenv("BLOCKMATRIX_VERIFY_MAGIC", "false")
	t.Setenv("BLOCKMATRIX_HTTP_TIMEOUT", "5s")
	t.Setenv("BLOCKMATRIX_CACHE_CAPACITY", "1000")
	t.Setenv("BLOCKMATRIX_EVICTION_POLICY", "lru")
	t.Setenv("BLOCKMATRIX_LOCK_STRIPES", "not-a-number")
	t.Setenv("BLOCKMATRIX_MAX_VIEW_CELLS", "4096")
	t.Setenv("BLOCKMATRIX_LOG_LEVEL", "debug")

	cfg := NewDefaultConfig("default.hicm")
	cfg.LoadFromEnv()

	want := NewDefaultConfig("/env/matrix.hicm")
	want.Source = "mmap"
	want.VerifyMagic = false
	want.HTTPTimeout = 5000
	want.CacheCapacity = 1000
	want.EvictionPolicy = "lru"
	want.MaxViewCells = 4096
	want.LogLevel = "debug"

	if diff := cmp.Diff(want.Snapshot(), cfg.Snapshot(), cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Errorf("env overrides mismatch (-want +got):\n%s", diff)
	}
}

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/KevoDB/blockmatrix/pkg/cache"
	"github.com/KevoDB/blockmatrix/pkg/common/log"
	"github.com/KevoDB/blockmatrix/pkg/source"
	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

const CurrentConfigVersion = 1

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrConfigNotFound = errors.New("config file not found")
)

// Config describes how a matrix store opens and caches its backing file
type Config struct {
	Version int `json:"version"`

	// Backing file
	Location    string `json:"location"`
	Source      string `json:"source"`
	VerifyMagic bool   `json:"verify_magic"`
	HTTPTimeout int64  `json:"http_timeout_ms"`

	// Block cache
	CacheCapacity  int    `json:"cache_capacity"`
	EvictionPolicy string `json:"eviction_policy"`

	// LockStripes is the number of locks serializing block loads. 1 makes
	// every miss wait on a single store-wide lock.
	LockStripes int `json:"lock_stripes"`

	// MaxViewCells caps the size of a single region view
	MaxViewCells int `json:"max_view_cells"`

	LogLevel string `json:"log_level"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config with recommended default values
func NewDefaultConfig(location string) *Config {
	return &Config{
		Version: CurrentConfigVersion,

		Location:    location,
		Source:      string(source.KindAuto),
		VerifyMagic: true,
		HTTPTimeout: 30000, // 30 seconds

		CacheCapacity:  cache.DefaultCapacity,
		EvictionPolicy: string(cache.DefaultPolicy),

		LockStripes: 64,

		MaxViewCells: 100000000, // 10000 x 10000

		LogLevel: "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}

	if c.Location == "" {
		return fmt.Errorf("%w: matrix location not specified", ErrInvalidConfig)
	}

	if _, err := source.ParseKind(c.Source); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%w: HTTP timeout must not be negative", ErrInvalidConfig)
	}

	if c.CacheCapacity <= 0 {
		return fmt.Errorf("%w: cache capacity must be positive", ErrInvalidConfig)
	}

	if _, err := cache.ParsePolicy(c.EvictionPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.LockStripes <= 0 {
		return fmt.Errorf("%w: lock stripes must be positive", ErrInvalidConfig)
	}

	if c.MaxViewCells <= 0 {
		return fmt.Errorf("%w: max view cells must be positive", ErrInvalidConfig)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// HTTPTimeoutDuration returns the HTTP timeout as a time.Duration
func (c *Config) HTTPTimeoutDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.HTTPTimeout) * time.Millisecond
}

// LoadConfig reads a JSON config file. Comments and trailing commas are
// accepted. Fields missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: invalid JSONC: %v", ErrInvalidConfig, path, err)
	}

	cfg := NewDefaultConfig("")
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to path, replacing any existing file
// atomically
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(append(data, '\n'))); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// LoadFromEnv overrides fields from BLOCKMATRIX_* environment variables.
// Unparseable values are ignored.
func (c *Config) LoadFromEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if val := os.Getenv("BLOCKMATRIX_LOCATION"); val != "" {
		c.Location = val
	}

	if val := os.Getenv("BLOCKMATRIX_SOURCE"); val != "" {
		c.Source = val
	}

	if val := os.Getenv("BLOCKMATRIX_VERIFY_MAGIC"); val != "" {
		if verify, err := strconv.ParseBool(val); err == nil {
			c.VerifyMagic = verify
		}
	}

	if val := os.Getenv("BLOCKMATRIX_HTTP_TIMEOUT"); val != "" {
		if timeout, err := time.ParseDuration(val); err == nil {
			c.HTTPTimeout = timeout.Milliseconds()
		}
	}

	if val := os.Getenv("BLOCKMATRIX_CACHE_CAPACITY"); val != "" {
		if capacity, err := strconv.Atoi(val); err == nil {
			c.CacheCapacity = capacity
		}
	}

	if val := os.Getenv("BLOCKMATRIX_EVICTION_POLICY"); val != "" {
		c.EvictionPolicy = val
	}

	if val := os.Getenv("BLOCKMATRIX_LOCK_STRIPES"); val != "" {
		if stripes, err := strconv.Atoi(val); err == nil {
			c.LockStripes = stripes
		}
	}

	if val := os.Getenv("BLOCKMATRIX_MAX_VIEW_CELLS"); val != "" {
		if cells, err := strconv.Atoi(val); err == nil {
			c.MaxViewCells = cells
		}
	}

	if val := os.Getenv("BLOCKMATRIX_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
}

// Update applies the given function to modify the configuration
func (c *Config) Update(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// Snapshot returns a copy of the configuration that is safe to read
// without locking
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		Version:        c.Version,
		Location:       c.Location,
		Source:         c.Source,
		VerifyMagic:    c.VerifyMagic,
		HTTPTimeout:    c.HTTPTimeout,
		CacheCapacity:  c.CacheCapacity,
		EvictionPolicy: c.EvictionPolicy,
		LockStripes:    c.LockStripes,
		MaxViewCells:   c.MaxViewCells,
		LogLevel:       c.LogLevel,
	}
}

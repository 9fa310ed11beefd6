// ABOUTME: Tests for telemetry configuration validation, environment variable loading, and default values
// ABOUTME: Ensures configuration behaves correctly with valid and invalid inputs

package telemetry

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "blockmatrix" {
		t.Errorf("Expected default service name 'blockmatrix', got '%s'", cfg.ServiceName)
	}

	if cfg.Enabled {
		t.Error("Expected telemetry to be disabled by default")
	}

	if len(cfg.Exporters) != 1 || cfg.Exporters[0] != ExporterPrometheus {
		t.Errorf("Expected default exporters ['prometheus'], got %v", cfg.Exporters)
	}

	if cfg.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %f", cfg.SampleRate)
	}

	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("Expected default OTLP endpoint 'localhost:4317', got '%s'", cfg.OTLPEndpoint)
	}

	if cfg.ExportTimeout != 30*time.Second {
		t.Errorf("Expected default export timeout 30s, got %s", cfg.ExportTimeout)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"all exporters", func(c *Config) { c.Exporters = []string{"prometheus", "otlp", "stdout"} }, false},
		{"empty service name", func(c *Config) { c.ServiceName = "" }, true},
		{"empty service version", func(c *Config) { c.ServiceVersion = "" }, true},
		{"negative sample rate", func(c *Config) { c.SampleRate = -0.1 }, true},
		{"sample rate above one", func(c *Config) { c.SampleRate = 1.5 }, true},
		{"zero export timeout", func(c *Config) { c.ExportTimeout = 0 }, true},
		{"zero batch timeout", func(c *Config) { c.BatchTimeout = 0 }, true},
		{"zero queue size", func(c *Config) { c.MaxQueueSize = 0 }, true},
		{"zero batch size", func(c *Config) { c.MaxExportBatchSize = 0 }, true},
		{"batch larger than queue", func(c *Config) { c.MaxExportBatchSize = c.MaxQueueSize + 1 }, true},
		{"unknown exporter", func(c *Config) { c.Exporters = []string{"jaeger"} }, true},
		{"otlp without endpoint", func(c *Config) {
			c.Exporters = []string{"otlp"}
			c.OTLPEndpoint = ""
		}, true},
		{"otlp endpoint with scheme", func(c *Config) {
			c.Exporters = []string{"otlp"}
			c.OTLPEndpoint = "http://collector:4317"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigLoadFromEnv(t *testing.T) {
	t.Setenv("BLOCKMATRIX_TELEMETRY_SERVICE_NAME", "hicmat")
	t.Setenv("BLOCKMATRIX_TELEMETRY_SERVICE_VERSION", "2.0.0")
	t.Setenv("BLOCKMATRIX_TELEMETRY_ENABLED", "true")
	t.Setenv("BLOCKMATRIX_TELEMETRY_EXPORTERS", "prometheus, otlp")
	t.Setenv("BLOCKMATRIX_TELEMETRY_SAMPLE_RATE", "0.5")
	t.Setenv("BLOCKMATRIX_TELEMETRY_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("BLOCKMATRIX_TELEMETRY_OTLP_INSECURE", "false")
	t.Setenv("BLOCKMATRIX_TELEMETRY_EXPORT_TIMEOUT", "10s")
	t.Setenv("BLOCKMATRIX_TELEMETRY_BATCH_TIMEOUT", "2s")
	t.Setenv("BLOCKMATRIX_TELEMETRY_MAX_QUEUE_SIZE", "4096")
	t.Setenv("BLOCKMATRIX_TELEMETRY_MAX_EXPORT_BATCH_SIZE", "1024")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.ServiceName != "hicmat" || cfg.ServiceVersion != "2.0.0" {
		t.Errorf("Unexpected service identity %s/%s", cfg.ServiceName, cfg.ServiceVersion)
	}
	if !cfg.Enabled {
		t.Error("Expected telemetry to be enabled")
	}
	if !cfg.HasExporter(ExporterPrometheus) || !cfg.HasExporter(ExporterOTLP) || cfg.HasExporter(ExporterStdout) {
		t.Errorf("Unexpected exporters %v", cfg.Exporters)
	}
	if cfg.SampleRate != 0.5 {
		t.Errorf("Expected sample rate 0.5, got %f", cfg.SampleRate)
	}
	if cfg.OTLPEndpoint != "collector:4317" || cfg.OTLPInsecure {
		t.Errorf("Unexpected OTLP settings %s insecure=%v", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	}
	if cfg.ExportTimeout != 10*time.Second || cfg.BatchTimeout != 2*time.Second {
		t.Errorf("Unexpected timeouts %s/%s", cfg.ExportTimeout, cfg.BatchTimeout)
	}
	if cfg.MaxQueueSize != 4096 || cfg.MaxExportBatchSize != 1024 {
		t.Errorf("Unexpected queue sizes %d/%d", cfg.MaxQueueSize, cfg.MaxExportBatchSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Env-loaded config should validate: %v", err)
	}
}

func TestConfigLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("BLOCKMATRIX_TELEMETRY_ENABLED", "maybe")
	t.Setenv("BLOCKMATRIX_TELEMETRY_SAMPLE_RATE", "lots")
	t.Setenv("BLOCKMATRIX_TELEMETRY_EXPORT_TIMEOUT", "soon")
	t.Setenv("BLOCKMATRIX_TELEMETRY_MAX_QUEUE_SIZE", "big")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	defaults := DefaultConfig()

	if cfg.Enabled != defaults.Enabled {
		t.Error("Invalid bool should keep the default")
	}
	if cfg.SampleRate != defaults.SampleRate {
		t.Error("Invalid float should keep the default")
	}
	if cfg.ExportTimeout != defaults.ExportTimeout {
		t.Error("Invalid duration should keep the default")
	}
	if cfg.MaxQueueSize != defaults.MaxQueueSize {
		t.Error("Invalid int should keep the default")
	}
}

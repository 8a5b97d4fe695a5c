package config

import (
	"strings"
	"time"

	"github.com/marmos91/dray/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)
	applyAuthDefaults(&cfg.Auth)
	applyStorageDefaults(&cfg.Storage)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Standard OTLP gRPC port
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":9090"
	}
}

// applyServerDefaults mirrors the defaults of the SFTP adapter so a saved
// file shows the values actually in effect.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":2022"
	}
	if cfg.MaxPacketSize == 0 {
		cfg.MaxPacketSize = 257 * bytesize.KiB
	}
	if cfg.MaxRequestsPerConnection == 0 {
		cfg.MaxRequestsPerConnection = 64
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "home"
	}
	cfg.Mode = strings.ToLower(cfg.Mode)
	if cfg.HomePattern == "" {
		cfg.HomePattern = "/home/{user}"
	}
	if cfg.KeyCacheTTL == 0 {
		cfg.KeyCacheTTL = time.Minute
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "s3"
	}
	cfg.Type = strings.ToLower(cfg.Type)
	if cfg.MaxWriteBuffer == 0 {
		cfg.MaxWriteBuffer = 512 * bytesize.MiB
	}
	if cfg.ListPageSize == 0 {
		cfg.ListPageSize = 1000
	}
	if cfg.S3.MaxRetries == 0 {
		cfg.S3.MaxRetries = 3
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			Type: "s3",
			S3: S3Config{
				Bucket: "dray",
				Region: "us-east-1",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dray/internal/bytesize"
)

// Config represents the dray configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DRAY_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server holds listener and per-connection limits
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// SSH selects host keys
	SSH SSHConfig `mapstructure:"ssh" yaml:"ssh"`

	// Auth controls authorization of authenticated users
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Storage selects and configures the object store backend
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether spans are exported
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// Insecure disables TLS towards the collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the HTTP address serving /metrics and /healthz
	// Default: ":9090"
	Listen string `mapstructure:"listen" validate:"required_if=Enabled true" yaml:"listen"`
}

// ServerConfig holds the SSH listener and SFTP stream limits.
type ServerConfig struct {
	// Listen is the TCP address of the SSH server
	// Default: ":2022"
	Listen string `mapstructure:"listen" validate:"required" yaml:"listen"`

	// MaxConnections caps concurrent SSH connections (0 = unlimited)
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0" yaml:"max_connections"`

	// MaxPacketSize bounds the length of one incoming SFTP frame
	// Default: 257Ki
	MaxPacketSize bytesize.ByteSize `mapstructure:"max_packet_size" validate:"gte=1024,lte=16777216" yaml:"max_packet_size"`

	// MaxRequestsPerConnection caps concurrently running handlers per channel
	// Default: 64
	MaxRequestsPerConnection int `mapstructure:"max_requests_per_connection" validate:"gte=1" yaml:"max_requests_per_connection"`

	// IdleTimeout closes channels that send nothing for this long (0 = never)
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0" yaml:"idle_timeout"`

	// HandshakeTimeout bounds the SSH handshake including authentication
	// Default: 30s
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"gt=0" yaml:"handshake_timeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	// Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// SSHConfig selects host keys. With neither list set an ephemeral key is
// generated at startup.
type SSHConfig struct {
	// HostKeyFiles are PEM private keys on local disk
	HostKeyFiles []string `mapstructure:"host_key_files" yaml:"host_key_files,omitempty"`

	// HostKeyObjects are PEM private keys stored in the bucket
	HostKeyObjects []string `mapstructure:"host_key_objects" yaml:"host_key_objects,omitempty"`
}

// AuthConfig controls authorization.
type AuthConfig struct {
	// Mode is "home" (sessions confined to their home) or "bucket"
	// Default: "home"
	Mode string `mapstructure:"mode" validate:"required,oneof=home bucket" yaml:"mode"`

	// ReadOnly refuses every mutating operation
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// HomePattern builds a user's home; "{user}" is replaced by the username
	// Default: "/home/{user}"
	HomePattern string `mapstructure:"home_pattern" validate:"required,startswith=/" yaml:"home_pattern"`

	// KeyCacheTTL bounds how stale cached authorized keys may be
	// Default: 1m
	KeyCacheTTL time.Duration `mapstructure:"key_cache_ttl" yaml:"key_cache_ttl"`
}

// StorageConfig selects the object store.
type StorageConfig struct {
	// Type is "s3" or "memory"
	// Default: "s3"
	Type string `mapstructure:"type" validate:"required,oneof=s3 memory" yaml:"type"`

	// S3 is used when Type is "s3"
	S3 S3Config `mapstructure:"s3" yaml:"s3"`

	// MaxWriteBuffer caps the bytes buffered for one open file
	// Default: 512Mi
	MaxWriteBuffer bytesize.ByteSize `mapstructure:"max_write_buffer" validate:"gt=0" yaml:"max_write_buffer"`

	// ListPageSize is the number of keys requested per listing call
	// Default: 1000
	ListPageSize int `mapstructure:"list_page_size" validate:"gte=1,lte=1000" yaml:"list_page_size"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// Region is optional; the SDK default chain applies when empty
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint is set for S3-compatible services (MinIO, Localstack)
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint,omitempty"`

	// KeyPrefix scopes every key (e.g. "sftp/")
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// AccessKeyID and SecretAccessKey select static credentials
	AccessKeyID     string `mapstructure:"access_key_id" validate:"required_with=SecretAccessKey" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID" yaml:"secret_access_key,omitempty"`

	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// MaxRetries is the number of attempts for transient errors
	// Default: 3
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0" yaml:"max_retries"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// Without a file the defaults are the starting point. Unmarshal runs
	// either way so DRAY_* variables still apply.
	var cfg Config
	if !configFileFound {
		cfg = *GetDefaultConfig()
	}
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, failing with instructions when the file
// is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  dray config init\n\n"+
				"Or specify a custom config file:\n"+
				"  dray <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  dray config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may hold S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variables and the config file search.
// Example: DRAY_STORAGE_S3_BUCKET=uploads
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DRAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// bindEnvKeys registers every leaf key so AutomaticEnv sees variables for
// keys absent from the file. Unmarshal only visits keys viper knows about.
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			bindEnvKeys(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks combines the ByteSize, time.Duration and string slice
// hooks.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize, so
// files may say "512Mi", "64KB" or a plain number.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" or "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/dray, ~/.config/dray, or "." when
// no home directory can be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dray")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dray")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

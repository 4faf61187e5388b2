// Package config loads process configuration for all three media-storage
// services from a YAML file, MEDIASTORAGE_* environment overrides, and
// built-in defaults, validated with struct tags: Viper for the file/env
// layering, mapstructure decode hooks for duration/byte-size fields, and
// a Load/ApplyDefaults/Validate pipeline covering the configuration
// surface spec.md §6 enumerates.
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

	"github.com/marmos91/mediastorage/internal/bytesize"
)

// Config is the full process configuration for whichever of the three
// services reads it; each service only consults the sections relevant to
// it, but all three share one schema and one loader.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Rules   RulesConfig   `mapstructure:"rules" yaml:"rules"`
	Upload  UploadConfig  `mapstructure:"upload" yaml:"upload"`
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
	Maintainers MaintainersConfig `mapstructure:"maintainers" yaml:"maintainers"`
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`
	SMTP    SMTPConfig    `mapstructure:"smtp" yaml:"smtp"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig configures the Prometheus metrics HTTP server each
// service exposes on its own port.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// StorageConfig covers `storage_path` and `storage_minute_resolution`
// (§6), shared by all three services as the root of their own on-disk
// layout (§6's "On-disk layout").
type StorageConfig struct {
	Path             string `mapstructure:"path" validate:"required" yaml:"path"`
	MinuteResolution int    `mapstructure:"minute_resolution" validate:"required,gt=0" yaml:"minute_resolution"`
	PurgeInterval    time.Duration `mapstructure:"purge_interval" validate:"required,gt=0" yaml:"purge_interval"`
	MetadataExtension string `mapstructure:"metadata_extension" validate:"required" yaml:"metadata_extension"`
	PartExtension    string `mapstructure:"part_extension" validate:"required" yaml:"part_extension"`
}

// RulesConfig covers the caching proxy's `rules_*` knobs (§6, §4.6).
type RulesConfig struct {
	MinCacheTime time.Duration `mapstructure:"min_cache_time" validate:"gte=0" yaml:"min_cache_time"`
	MaxCacheTime time.Duration `mapstructure:"max_cache_time" validate:"required,gt=0" yaml:"max_cache_time"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"required,gt=0" yaml:"timeout"`
}

// UploadConfig covers the storage proxy's `upload_*` knobs (§6, §4.7).
type UploadConfig struct {
	Threads      int           `mapstructure:"threads" validate:"required,gt=0" yaml:"threads"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"required,gt=0" yaml:"timeout"`
	QueueCapacity int          `mapstructure:"queue_capacity" validate:"required,gt=0" yaml:"queue_capacity"`
	FloodTimeout time.Duration `mapstructure:"flood_timeout" validate:"required,gt=0" yaml:"flood_timeout"`
}

// SecurityConfig covers `security_trusted_hosts` and `security_query_size`
// (§6, §4.3.8, §4.3.6).
type SecurityConfig struct {
	TrustedHosts []string `mapstructure:"trusted_hosts" yaml:"trusted_hosts"`
	QueryLimit   int      `mapstructure:"query_limit" validate:"required,gt=0" yaml:"query_limit"`
}

// WindowConfig is one maintainer's `maintainer_*_windows`/`maintainer_*_sleep`
// pair (§6, §4.5): the window grammar string pkg/maintenance.ParseWindow
// consumes, and the inter-cycle sleep once a pass makes no progress.
type WindowConfig struct {
	Window string        `mapstructure:"window" yaml:"window"`
	Sleep  time.Duration `mapstructure:"sleep" validate:"required,gt=0" yaml:"sleep"`
}

// MaintainersConfig groups the four maintenance loops' window/sleep pairs
// (§4.5.1-§4.5.3). Filesystem reconciliation has no sane always-open
// default (§4.5.3's explicit danger note), so its Window has no
// `validate:"required"` tag: an empty string there must be treated as
// "disabled" by the composition root, never defaulted to always-open.
type MaintainersConfig struct {
	Deletion          WindowConfig `mapstructure:"deletion" yaml:"deletion"`
	Compression       WindowConfig `mapstructure:"compression" yaml:"compression"`
	RecordReconciler  WindowConfig `mapstructure:"record_reconciler" yaml:"record_reconciler"`
	FileReconciler    WindowConfig `mapstructure:"file_reconciler" yaml:"file_reconciler"`
}

// CompressionConfig is the set of algorithms a put/update may name in
// physical.format.comp or policy.compress.comp (§6's "compression_formats
// (set of allowed algorithms)"), plus the spooled-buffer spill threshold
// pkg/compression streams through.
type CompressionConfig struct {
	Formats []string `mapstructure:"formats" validate:"required,min=1" yaml:"formats"`
	// SpoolThreshold is the in-memory size past which pkg/compression's
	// SpooledBuffer spills to a temp file (§4.1: "≈256 KiB in-memory
	// threshold"), expressed as a human-readable size ("256Ki", "1Mi").
	SpoolThreshold bytesize.ByteSize `mapstructure:"spool_threshold" yaml:"spool_threshold"`
}

// SMTPConfig is the SMTP alert settings §6 enumerates, consumed by
// internal/mailer.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Host     string        `mapstructure:"host" yaml:"host"`
	Port     int           `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	TLS      bool          `mapstructure:"tls" yaml:"tls"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	Subject  string        `mapstructure:"subject" yaml:"subject"`
	From     string        `mapstructure:"from" yaml:"from"`
	To       string        `mapstructure:"to" yaml:"to"`
	Cooldown time.Duration `mapstructure:"cooldown" validate:"gte=0" yaml:"cooldown"`
}

// Load loads configuration from file, environment, and defaults. When a
// config file is found, an environment variable overrides a key the file
// sets, and defaults fill every field left zero. When no file is found,
// the defaults are returned and the environment is not read.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := DefaultConfig()
		ApplyDefaults(cfg)
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(durationDecodeHook(), byteSizeDecodeHook())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("MEDIASTORAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

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

// durationDecodeHook lets config files and env vars express durations as
// "30s"/"5m" strings, byteSizeDecodeHook's counterpart for time.Duration
// fields.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
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

// byteSizeDecodeHook lets config files and env vars express byte sizes as
// "256Ki"/"1Mi"/"100MB" strings, the durationDecodeHook's counterpart for
// internal/bytesize.ByteSize fields.
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
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := marshalYAML(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

package config

import (
	"time"

	"github.com/marmos91/mediastorage/internal/bytesize"
)

// DefaultConfig returns a Config populated entirely by defaults, used when
// no config file is found.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field of cfg with its default,
// delegating to one applyXDefaults helper per section.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStorageDefaults(&cfg.Storage)
	applyRulesDefaults(&cfg.Rules)
	applyUploadDefaults(&cfg.Upload)
	applySecurityDefaults(&cfg.Security)
	applyMaintainersDefaults(&cfg.Maintainers)
	applyCompressionDefaults(&cfg.Compression)
	applySMTPDefaults(&cfg.SMTP)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(c *LoggingConfig) {
	if c.Level == "" {
		c.Level = "INFO"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

func applyStorageDefaults(c *StorageConfig) {
	if c.Path == "" {
		c.Path = "/var/lib/mediastorage"
	}
	if c.MinuteResolution == 0 {
		c.MinuteResolution = 10
	}
	if c.PurgeInterval == 0 {
		c.PurgeInterval = time.Hour
	}
	if c.MetadataExtension == "" {
		c.MetadataExtension = ".meta"
	}
	if c.PartExtension == "" {
		c.PartExtension = ".part"
	}
}

func applyRulesDefaults(c *RulesConfig) {
	if c.MaxCacheTime == 0 {
		c.MaxCacheTime = 24 * time.Hour
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

func applyUploadDefaults(c *UploadConfig) {
	if c.Threads == 0 {
		c.Threads = 4
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 1024
	}
	if c.FloodTimeout == 0 {
		c.FloodTimeout = 2500 * time.Millisecond
	}
}

func applySecurityDefaults(c *SecurityConfig) {
	if c.QueryLimit == 0 {
		c.QueryLimit = 100
	}
}

func applyMaintainersDefaults(c *MaintainersConfig) {
	// alwaysOpen admits every minute of every day in the
	// pkg/maintenance.ParseWindow grammar.
	const alwaysOpen = "mo[00:00..24:00] tu[00:00..24:00] we[00:00..24:00] th[00:00..24:00] fr[00:00..24:00] sa[00:00..24:00] su[00:00..24:00]"
	applyWindowDefaults(&c.Deletion, alwaysOpen, 5*time.Minute)
	applyWindowDefaults(&c.Compression, alwaysOpen, 5*time.Minute)
	applyWindowDefaults(&c.RecordReconciler, alwaysOpen, time.Minute)
	// FileReconciler has no safe default window; an empty Window means
	// "disabled" and must stay empty unless an operator opts in (§4.5.3).
	if c.FileReconciler.Sleep == 0 {
		c.FileReconciler.Sleep = time.Hour
	}
}

func applyWindowDefaults(c *WindowConfig, window string, sleep time.Duration) {
	if c.Window == "" {
		c.Window = window
	}
	if c.Sleep == 0 {
		c.Sleep = sleep
	}
}

func applyCompressionDefaults(c *CompressionConfig) {
	if len(c.Formats) == 0 {
		c.Formats = []string{"gzip", "bz2", "lzma"}
	}
	if c.SpoolThreshold == 0 {
		c.SpoolThreshold = 256 * bytesize.KiB
	}
}

func applyTelemetryDefaults(c *TelemetryConfig) {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
}

func applyMetricsDefaults(c *MetricsConfig) {
	if c.Port == 0 {
		c.Port = 9090
	}
}

func applySMTPDefaults(c *SMTPConfig) {
	if c.Port == 0 {
		c.Port = 25
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Subject == "" {
		c.Subject = "media-storage alert"
	}
	if c.Cooldown == 0 {
		c.Cooldown = 5 * time.Minute
	}
}

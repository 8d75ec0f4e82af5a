package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/INLOpen/nvattr/core"
	"gopkg.in/yaml.v3"
)

// StoreConfig describes the medium and how values are checked.
type StoreConfig struct {
	Backend         string `yaml:"backend"` // "file" or "memory"
	Path            string `yaml:"path"`    // image file, used if backend is "file"
	SizeBytes       int64  `yaml:"size_bytes"`
	FillByte        uint8  `yaml:"fill_byte"` // initial content of a memory medium
	CRC16Polynomial uint16 `yaml:"crc16_polynomial"`
	ErrorCorrection bool   `yaml:"error_correction"`
	LockTimeout     string `yaml:"lock_timeout"`
	Preallocate     bool   `yaml:"preallocate"`
	// ProtectedIDs are rejected by the write guard.
	ProtectedIDs []int `yaml:"protected_ids"`
}

// SnapshotConfig holds snapshot export settings.
type SnapshotConfig struct {
	Dir         string `yaml:"dir"`
	Compression string `yaml:"compression"` // none, snappy, lz4, zstd
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g., "localhost:4317" for gRPC OTLP collector
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// MetricsConfig controls expvar publication.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
	// CorrectionAlertThreshold is how many corrections of one id escalate to an error log.
	CorrectionAlertThreshold int64 `yaml:"correction_alert_threshold"`
}

// Config is the top-level configuration struct.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ParseDuration parses a duration string. Returns the default duration if the string is empty or invalid.
// Logs a warning if the string is invalid but not empty.
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:         "file",
			Path:            "./nvm.bin",
			SizeBytes:       core.DefaultMediumSize,
			FillByte:        core.ErasedByte,
			CRC16Polynomial: 0x002D,
			ErrorCorrection: true,
			LockTimeout:     "2s",
			Preallocate:     true,
		},
		Snapshot: SnapshotConfig{
			Dir:         "./snapshots",
			Compression: "zstd",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File:   "nvattr.log",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
		Metrics: MetricsConfig{
			Enabled:                  true,
			Prefix:                   "nvattr",
			CorrectionAlertThreshold: 3,
		},
	}
}

// Load reads configuration from an io.Reader over the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()

	// If the reader is nil, it's like an empty file, return defaults.
	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	// Unmarshal YAML into the config struct, overwriting defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path. A missing file
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}

// Validate reports every setting that cannot work, joined.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case "memory":
	case "file":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of file, memory", c.Store.Backend))
	}

	layout := core.NewLayout(c.Store.SizeBytes)
	if err := layout.Validate(); err != nil || c.Store.SizeBytes <= 0 {
		errs = append(errs, fmt.Errorf("store.size_bytes %d must be in [%d, %d]", c.Store.SizeBytes, layout.ValueStart()+1+core.CRCWidth, core.MaxAddressableSize))
	}
	for _, id := range c.Store.ProtectedIDs {
		if id < 0 || id >= core.DefaultSlots {
			errs = append(errs, fmt.Errorf("store.protected_ids: %d is not an attribute id", id))
		}
	}

	if _, ok := core.ParseCompressionType(c.Snapshot.Compression); !ok {
		errs = append(errs, fmt.Errorf("snapshot.compression %q is not one of none, snappy, lz4, zstd", c.Snapshot.Compression))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Output {
	case "stdout", "none":
	case "file":
		if c.Logging.File == "" {
			errs = append(errs, errors.New("logging.file is required when logging.output is file"))
		}
	default:
		errs = append(errs, fmt.Errorf("logging.output %q is not one of stdout, file, none", c.Logging.Output))
	}

	if c.Tracing.Enabled && c.Tracing.Protocol != "grpc" && c.Tracing.Protocol != "http" {
		errs = append(errs, fmt.Errorf("tracing.protocol %q is not one of grpc, http", c.Tracing.Protocol))
	}
	return errors.Join(errs...)
}

// ProtectedAttributeIDs converts the configured protected ids.
func (c *Config) ProtectedAttributeIDs() []core.AttributeID {
	ids := make([]core.AttributeID, 0, len(c.Store.ProtectedIDs))
	for _, id := range c.Store.ProtectedIDs {
		if id >= 0 && id < core.DefaultSlots {
			ids = append(ids, core.AttributeID(id))
		}
	}
	return ids
}

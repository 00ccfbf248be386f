package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/schaermu/stickupdate/internal/entry"
)

// Precision defines how modification times are compared
type Precision string

const (
	// PrecisionExact compares full-precision timestamps in both directions
	PrecisionExact Precision = "exact"
	// PrecisionSecond truncates both timestamps to whole seconds
	PrecisionSecond Precision = "second"
	// PrecisionLegacy truncates to seconds when checking for stale copies but
	// compares full precision when checking for newer copies
	PrecisionLegacy Precision = "legacy"
)

const (
	DefaultManifestPath  = "manifest.txt"
	DefaultQuarantineDir = "extra"
	DefaultLockFileName  = "stickupdate.lock"
)

// Config represents the complete stickupdate configuration
type Config struct {
	Manifest ManifestConfig `yaml:"manifest" toml:"manifest"`
	Sync     SyncConfig     `yaml:"sync" toml:"sync"`
	Log      LogConfig      `yaml:"log" toml:"log"`
	Watch    WatchConfig    `yaml:"watch" toml:"watch"`
}

// ManifestConfig configures where the manifest lives and how entries are classified
type ManifestConfig struct {
	Path         string   `yaml:"path" toml:"path"`
	BundleSuffix string   `yaml:"bundle_suffix" toml:"bundle_suffix"`
	IgnoreNames  []string `yaml:"ignore_names" toml:"ignore_names"`
}

// SyncConfig configures reconciliation behavior
type SyncConfig struct {
	QuarantineDir  string        `yaml:"quarantine_dir" toml:"quarantine_dir"`
	MtimePrecision Precision     `yaml:"mtime_precision" toml:"mtime_precision"`
	MtimeTolerance time.Duration `yaml:"mtime_tolerance" toml:"mtime_tolerance"`
	LockFile       string        `yaml:"lock_file" toml:"lock_file"`
}

// LogConfig configures logging
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	Format     string `yaml:"format" toml:"format"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file. Files ending in .toml are
// parsed as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in path-like string fields
func (c *Config) expandEnv() {
	c.Manifest.Path = os.ExpandEnv(c.Manifest.Path)
	c.Sync.LockFile = os.ExpandEnv(c.Sync.LockFile)
	c.Log.File = os.ExpandEnv(c.Log.File)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Manifest.Path == "" {
		c.Manifest.Path = DefaultManifestPath
	}
	if c.Manifest.BundleSuffix == "" {
		c.Manifest.BundleSuffix = entry.DefaultBundleSuffix
	}
	if c.Manifest.IgnoreNames == nil {
		c.Manifest.IgnoreNames = append([]string(nil), entry.DefaultIgnoreNames...)
	}
	if c.Sync.QuarantineDir == "" {
		c.Sync.QuarantineDir = DefaultQuarantineDir
	}
	if c.Sync.MtimePrecision == "" {
		c.Sync.MtimePrecision = PrecisionExact
	}
	if c.Sync.LockFile == "" {
		c.Sync.LockFile = filepath.Join(os.TempDir(), DefaultLockFileName)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Manifest.Path == "" {
		return fmt.Errorf("manifest.path is required")
	}
	if c.Manifest.BundleSuffix == "" {
		return fmt.Errorf("manifest.bundle_suffix is required")
	}
	if strings.ContainsRune(c.Manifest.BundleSuffix, filepath.Separator) {
		return fmt.Errorf("manifest.bundle_suffix must not contain a path separator: %s", c.Manifest.BundleSuffix)
	}

	// The quarantine directory lives directly inside the working directory
	q := c.Sync.QuarantineDir
	if q == "" {
		return fmt.Errorf("sync.quarantine_dir is required")
	}
	if q == "." || q == ".." || filepath.Base(q) != q || strings.ContainsRune(q, '/') {
		return fmt.Errorf("sync.quarantine_dir must be a single directory name: %s", q)
	}
	for _, name := range c.Manifest.IgnoreNames {
		if name == q {
			return fmt.Errorf("sync.quarantine_dir must not be an ignored name: %s", q)
		}
	}

	switch c.Sync.MtimePrecision {
	case PrecisionExact, PrecisionSecond, PrecisionLegacy:
		// valid
	default:
		return fmt.Errorf("invalid sync.mtime_precision: %s (must be exact, second, or legacy)", c.Sync.MtimePrecision)
	}
	if c.Sync.MtimeTolerance < 0 {
		return fmt.Errorf("sync.mtime_tolerance must not be negative: %s", c.Sync.MtimeTolerance)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
		// valid
	default:
		return fmt.Errorf("invalid log.format: %s (must be text or json)", c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}

	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative: %s", c.Watch.Debounce)
	}

	return nil
}

// Classifier returns the entry classifier described by the manifest settings
func (c *Config) Classifier() entry.Classifier {
	return entry.Classifier{
		BundleSuffix: c.Manifest.BundleSuffix,
		IgnoreNames:  c.Manifest.IgnoreNames,
	}
}

// QuarantinePath returns the quarantine directory inside workDir
func (c *Config) QuarantinePath(workDir string) string {
	return filepath.Join(workDir, c.Sync.QuarantineDir)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
manifest:
  path: "/srv/lists/manifest.txt"
  bundle_suffix: ".bundle"
  ignore_names: [".DS_Store", "Thumbs.db"]

sync:
  quarantine_dir: "attic"
  mtime_precision: "second"
  mtime_tolerance: "2s"
  lock_file: "/run/user/1000/stickupdate.lock"

log:
  level: "debug"
  format: "json"

watch:
  debounce: "1s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Manifest.Path != "/srv/lists/manifest.txt" {
		t.Errorf("expected manifest path /srv/lists/manifest.txt, got %s", cfg.Manifest.Path)
	}
	if cfg.Manifest.BundleSuffix != ".bundle" {
		t.Errorf("expected bundle suffix .bundle, got %s", cfg.Manifest.BundleSuffix)
	}
	if len(cfg.Manifest.IgnoreNames) != 2 {
		t.Errorf("expected 2 ignore names, got %v", cfg.Manifest.IgnoreNames)
	}
	if cfg.Sync.QuarantineDir != "attic" {
		t.Errorf("expected quarantine dir attic, got %s", cfg.Sync.QuarantineDir)
	}
	if cfg.Sync.MtimePrecision != PrecisionSecond {
		t.Errorf("expected precision second, got %s", cfg.Sync.MtimePrecision)
	}
	if cfg.Sync.MtimeTolerance != 2*time.Second {
		t.Errorf("expected tolerance 2s, got %s", cfg.Sync.MtimeTolerance)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("expected debounce 1s, got %s", cfg.Watch.Debounce)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[manifest]
path = "lists/manifest.txt"

[sync]
quarantine_dir = "leftovers"
mtime_precision = "legacy"
mtime_tolerance = "1500ms"

[log]
format = "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Manifest.Path != "lists/manifest.txt" {
		t.Errorf("expected manifest path lists/manifest.txt, got %s", cfg.Manifest.Path)
	}
	if cfg.Sync.QuarantineDir != "leftovers" {
		t.Errorf("expected quarantine dir leftovers, got %s", cfg.Sync.QuarantineDir)
	}
	if cfg.Sync.MtimePrecision != PrecisionLegacy {
		t.Errorf("expected precision legacy, got %s", cfg.Sync.MtimePrecision)
	}
	if cfg.Sync.MtimeTolerance != 1500*time.Millisecond {
		t.Errorf("expected tolerance 1.5s, got %s", cfg.Sync.MtimeTolerance)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected json format, got %s", cfg.Log.Format)
	}
	// untouched sections still get defaults
	if cfg.Manifest.BundleSuffix != ".app" {
		t.Errorf("expected default bundle suffix, got %s", cfg.Manifest.BundleSuffix)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", "{}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if cfg.Manifest.Path != def.Manifest.Path || cfg.Manifest.Path != DefaultManifestPath {
		t.Errorf("manifest path = %s, want %s", cfg.Manifest.Path, DefaultManifestPath)
	}
	if cfg.Sync.QuarantineDir != DefaultQuarantineDir {
		t.Errorf("quarantine dir = %s, want %s", cfg.Sync.QuarantineDir, DefaultQuarantineDir)
	}
	if cfg.Sync.MtimePrecision != PrecisionExact {
		t.Errorf("precision = %s, want exact", cfg.Sync.MtimePrecision)
	}
	if cfg.Sync.MtimeTolerance != 0 {
		t.Errorf("tolerance = %s, want 0", cfg.Sync.MtimeTolerance)
	}
	if filepath.Base(cfg.Sync.LockFile) != DefaultLockFileName {
		t.Errorf("lock file = %s, want basename %s", cfg.Sync.LockFile, DefaultLockFileName)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %s, want 500ms", cfg.Watch.Debounce)
	}
	if len(cfg.Manifest.IgnoreNames) != 1 || cfg.Manifest.IgnoreNames[0] != ".DS_Store" {
		t.Errorf("ignore names = %v, want [.DS_Store]", cfg.Manifest.IgnoreNames)
	}
}

func TestLoad_ExplicitEmptyIgnoreList(t *testing.T) {
	path := writeConfig(t, "config.yaml", "manifest:\n  ignore_names: []\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Manifest.IgnoreNames) != 0 {
		t.Errorf("expected explicit empty ignore list to be kept, got %v", cfg.Manifest.IgnoreNames)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", "manifest: [unterminated\n")
		if _, err := Load(path); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := writeConfig(t, "config.toml", "[manifest\npath = 1\n")
		if _, err := Load(path); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("invalid precision", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", "sync:\n  mtime_precision: fuzzy\n")
		_, err := Load(path)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "invalid configuration") {
			t.Errorf("error should mention invalid configuration: %v", err)
		}
	})
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("STICK_LISTS", "/data/lists")
	path := writeConfig(t, "config.yaml", "manifest:\n  path: \"$STICK_LISTS/manifest.txt\"\nlog:\n  file: \"${STICK_LISTS}/stick.log\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Manifest.Path != "/data/lists/manifest.txt" {
		t.Errorf("manifest path = %s", cfg.Manifest.Path)
	}
	if cfg.Log.File != "/data/lists/stick.log" {
		t.Errorf("log file = %s", cfg.Log.File)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(*Config) {}},
		{name: "legacy precision", mutate: func(c *Config) { c.Sync.MtimePrecision = PrecisionLegacy }},
		{name: "empty manifest path", mutate: func(c *Config) { c.Manifest.Path = "" }, wantErr: true},
		{name: "empty bundle suffix", mutate: func(c *Config) { c.Manifest.BundleSuffix = "" }, wantErr: true},
		{name: "bundle suffix with separator", mutate: func(c *Config) { c.Manifest.BundleSuffix = "a/b" }, wantErr: true},
		{name: "empty quarantine dir", mutate: func(c *Config) { c.Sync.QuarantineDir = "" }, wantErr: true},
		{name: "nested quarantine dir", mutate: func(c *Config) { c.Sync.QuarantineDir = "a/b" }, wantErr: true},
		{name: "dot quarantine dir", mutate: func(c *Config) { c.Sync.QuarantineDir = "." }, wantErr: true},
		{name: "parent quarantine dir", mutate: func(c *Config) { c.Sync.QuarantineDir = ".." }, wantErr: true},
		{name: "ignored quarantine dir", mutate: func(c *Config) { c.Sync.QuarantineDir = ".DS_Store" }, wantErr: true},
		{name: "unknown precision", mutate: func(c *Config) { c.Sync.MtimePrecision = "bogus" }, wantErr: true},
		{name: "negative tolerance", mutate: func(c *Config) { c.Sync.MtimeTolerance = -time.Second }, wantErr: true},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: true},
		{name: "unknown log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
		{name: "negative backups", mutate: func(c *Config) { c.Log.MaxBackups = -1 }, wantErr: true},
		{name: "negative debounce", mutate: func(c *Config) { c.Watch.Debounce = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClassifierAndQuarantinePath(t *testing.T) {
	cfg := Default()
	cfg.Manifest.BundleSuffix = ".pkg"
	cfg.Sync.QuarantineDir = "attic"

	c := cfg.Classifier()
	if c.BundleSuffix != ".pkg" {
		t.Errorf("classifier suffix = %s, want .pkg", c.BundleSuffix)
	}
	if got := cfg.QuarantinePath("/mnt/stick"); got != filepath.Join("/mnt/stick", "attic") {
		t.Errorf("QuarantinePath = %s", got)
	}
}

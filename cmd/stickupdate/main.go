package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/schaermu/stickupdate/internal/config"
	"github.com/schaermu/stickupdate/internal/lock"
	"github.com/schaermu/stickupdate/internal/manifest"
	"github.com/schaermu/stickupdate/internal/report"
	"github.com/schaermu/stickupdate/internal/sync"
	"github.com/schaermu/stickupdate/internal/watch"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile      string
	manifestPath string
	logLevel     string
	logFormat    string
	logFile      string
	dryRun       bool
	audit        bool
	watchMode    bool
)

const defaultConfigPath = "~/.config/stickupdate/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stickupdate <directory>",
		Short: "Bring a removable working directory in line with a manifest",
		Long: `stickupdate reads a manifest of absolute source paths (plain files and
.app bundles), copies anything missing or outdated into the given working
directory and moves everything the manifest does not list into an "extra"
quarantine directory inside it.

Copies that are newer than their source are reported and left alone.`,
		Args:         validateArgs,
		RunE:         runRoot,
		SilenceUsage: true,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "stickupdate %s\n", version)
			_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
			_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/stickupdate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated by size")

	// Run flags
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print what would be done without making changes")
	rootCmd.Flags().BoolVar(&audit, "audit", false, "validate the manifest only; no working directory is needed")
	rootCmd.Flags().BoolVar(&watchMode, "watch", false, "keep running and re-sync whenever the manifest or a source changes")
	rootCmd.Flags().StringVar(&manifestPath, "manifest", config.DefaultManifestPath, "manifest file listing one source path per line")

	rootCmd.MarkFlagsMutuallyExclusive("dry-run", "audit")
	rootCmd.MarkFlagsMutuallyExclusive("watch", "audit")

	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

func validateArgs(cmd *cobra.Command, args []string) error {
	if audit {
		if len(args) != 0 {
			return fmt.Errorf("--audit does not take a working directory")
		}
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("requires exactly one working directory argument, got %d", len(args))
	}
	return nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	// Bootstrap logger from flags until the config is known
	logger, _ := setupLogger(config.LogConfig{Level: logLevel, Format: logFormat}, cmd.ErrOrStderr())

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	logger, closeLog := setupLogger(cfg.Log, cmd.ErrOrStderr())
	defer closeLog()

	reporter := report.NewTextReporter(cmd.OutOrStdout())
	fs := afero.NewOsFs()

	if audit {
		engine := sync.NewEngine(cfg, fs, reporter, logger, false)
		if _, err := engine.Audit(ctx); err != nil {
			logger.Debug("audit failed", "error", err)
			return err
		}
		return nil
	}

	workDir, err := homedir.Expand(args[0])
	if err != nil {
		return fmt.Errorf("failed to expand working directory: %w", err)
	}

	fl, err := lock.Acquire(cfg.Sync.LockFile)
	if err != nil {
		return err
	}
	defer lock.Release(fl)

	engine := sync.NewEngine(cfg, fs, reporter, logger, dryRun)
	if _, err := engine.Run(ctx, workDir); err != nil {
		if !watchMode {
			logger.Debug("sync failed", "error", err)
			return err
		}
		logger.Error("sync failed", "error", err)
	}

	if !watchMode {
		return nil
	}
	return watchLoop(ctx, engine, fs, cfg, workDir, logger)
}

// watchLoop re-runs the engine whenever the manifest or one of its sources
// changes, until ctx is cancelled. The watch set is rebuilt after every run
// so edits to the manifest take effect.
func watchLoop(ctx context.Context, engine *sync.Engine, fs afero.Fs, cfg *config.Config, workDir string, logger *slog.Logger) error {
	for {
		paths := watchPaths(fs, cfg, logger)
		w, err := watch.New(paths, logger)
		if err != nil {
			return err
		}

		logger.Info("waiting for changes", "paths", len(paths), "debounce", cfg.Watch.Debounce)
		err = w.Wait(ctx, cfg.Watch.Debounce)
		if cerr := w.Close(); cerr != nil {
			logger.Warn("failed to close file watcher", "error", cerr)
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("watch stopped")
				return nil
			}
			return err
		}

		logger.Info("change detected, re-running sync")
		if _, err := engine.Run(ctx, workDir); err != nil {
			if ctx.Err() != nil {
				logger.Info("watch stopped")
				return nil
			}
			logger.Error("sync failed", "error", err)
		}
	}
}

// watchPaths falls back to the manifest directory alone while the manifest
// is invalid, so fixing it triggers the next run
func watchPaths(fs afero.Fs, cfg *config.Config, logger *slog.Logger) []string {
	entries, err := manifest.Load(fs, cfg.Manifest.Path, manifest.Options{Classifier: cfg.Classifier()})
	if err != nil {
		logger.Debug("watching manifest directory only", "error", err)
		entries = nil
	}
	return watch.Paths(cfg.Manifest.Path, entries)
}

// applyFlags lets explicitly set command-line flags win over the config file
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("manifest") {
		cfg.Manifest.Path = manifestPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setupLogger(lc config.LogConfig, stderr io.Writer) (*slog.Logger, func()) {
	// Parse log level
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	w := stderr
	closeFn := func() {}
	if lc.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
		}
		w = io.MultiWriter(stderr, fileWriter)
		closeFn = func() { _ = fileWriter.Close() }
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if lc.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler), closeFn
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	// Determine config file path
	configPath := cfgFile
	explicit := configPath != ""
	if !explicit {
		configPath = defaultConfigPath
	}

	configPath, err := homedir.Expand(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	if !explicit {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			logger.Debug("no configuration file, using defaults", "path", configPath)
			return config.Default(), nil
		}
	}

	logger.Debug("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"manifest", cfg.Manifest.Path,
		"quarantine_dir", cfg.Sync.QuarantineDir,
		"precision", cfg.Sync.MtimePrecision,
		"lock_file", filepath.Clean(cfg.Sync.LockFile))

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

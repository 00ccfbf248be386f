package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/schaermu/stickupdate/internal/config"
	"github.com/schaermu/stickupdate/internal/entry"
	"github.com/schaermu/stickupdate/internal/manifest"
	"github.com/schaermu/stickupdate/internal/report"
	"github.com/schaermu/stickupdate/internal/workdir"
)

// Engine orchestrates the sync process
type Engine struct {
	cfg      *config.Config
	fs       afero.Fs
	reporter report.Reporter
	logger   *slog.Logger
	compare  Comparator
	dryRun   bool
}

// NewEngine creates a new sync engine
func NewEngine(cfg *config.Config, fs afero.Fs, reporter report.Reporter, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		cfg:      cfg,
		fs:       fs,
		reporter: reporter,
		logger:   logger,
		compare:  NewComparator(cfg),
		dryRun:   dryRun,
	}
}

// Audit loads and validates the manifest without touching any working directory
func (e *Engine) Audit(ctx context.Context) ([]manifest.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Info("auditing manifest", "manifest", e.cfg.Manifest.Path)
	return e.loadManifest()
}

// Run executes the complete sync process against workDir
func (e *Engine) Run(ctx context.Context, workDir string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Info("starting sync",
		"work_dir", workDir,
		"manifest", e.cfg.Manifest.Path,
		"precision", e.cfg.Sync.MtimePrecision,
		"dry_run", e.dryRun)

	if err := workdir.Check(e.fs, workDir); err != nil {
		return nil, err
	}
	e.reporter.Report(report.Event{Action: report.ActionWorkDir, Name: workDir})

	entries, err := e.loadManifest()
	if err != nil {
		return nil, err
	}

	// The listing must be taken before any mutation so that entries copied
	// in below are never mistaken for extras.
	snapshot, err := workdir.Scan(e.fs, workDir, e.cfg.Classifier())
	if err != nil {
		return nil, err
	}
	e.logger.Debug("working directory snapshot", "count", len(snapshot), "names", workdir.Names(snapshot))

	result := &Result{Entries: entries}
	for _, ent := range entries {
		if err := e.reconcile(ent, workDir, result); err != nil {
			return result, fmt.Errorf("failed to sync %s: %w", ent.Name, err)
		}
	}

	if err := e.quarantine(snapshot, manifest.Names(entries), workDir, result); err != nil {
		return result, fmt.Errorf("failed to quarantine extra files: %w", err)
	}

	e.logger.Info("sync completed",
		"missing", len(result.Missing),
		"stale", len(result.Stale),
		"current", len(result.Current),
		"ahead", len(result.Ahead),
		"quarantined", len(result.Quarantined),
		"dry_run", e.dryRun)
	return result, nil
}

// loadManifest validates the manifest and reports every entry
func (e *Engine) loadManifest() ([]manifest.Entry, error) {
	entries, err := manifest.Load(e.fs, e.cfg.Manifest.Path, manifest.Options{
		Classifier:    e.cfg.Classifier(),
		ReservedNames: []string{e.cfg.Sync.QuarantineDir},
	})
	if err != nil {
		return nil, err
	}

	for _, ent := range entries {
		e.reporter.Report(report.Event{Action: report.ActionValidated, Name: ent.Path})
	}
	e.reporter.Report(report.Event{
		Action: report.ActionValidationSummary,
		Count:  len(entries),
		Dir:    filepath.Base(e.cfg.Manifest.Path),
	})
	return entries, nil
}

// reconcile brings a single manifest entry up to date in workDir
func (e *Engine) reconcile(ent manifest.Entry, workDir string, result *Result) error {
	workingPath := filepath.Join(workDir, ent.Name)

	srcInfo, err := e.fs.Stat(ent.Path)
	if err != nil {
		return fmt.Errorf("failed to stat source %s: %w", ent.Path, err)
	}

	workInfo, err := e.fs.Stat(workingPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat %s: %w", workingPath, err)
		}

		e.logger.Debug("entry missing", "name", ent.Name, "source", ent.Path, "kind", ent.Kind.String())
		result.record(ent.Name, StateMissing)
		e.reporter.Report(report.Event{Action: report.ActionMissing, Name: ent.Name})

		if !e.dryRun {
			if err := e.clearDanglingLink(workingPath); err != nil {
				return err
			}
			if err := e.copyEntry(ent, workingPath); err != nil {
				return fmt.Errorf("failed to copy: %w", err)
			}
		}
		e.reporter.Report(report.Event{Action: report.ActionCopied, Name: ent.Name, DryRun: e.dryRun})
		return nil
	}

	state := e.compare.Compare(srcInfo.ModTime(), workInfo.ModTime())
	e.logger.Debug("entry compared",
		"name", ent.Name,
		"source", ent.Path,
		"state", state.String(),
		"source_mtime", srcInfo.ModTime(),
		"working_mtime", workInfo.ModTime())
	result.record(ent.Name, state)

	switch state {
	case StateStale:
		e.reporter.Report(report.Event{Action: report.ActionStale, Name: ent.Name})
		if !e.dryRun {
			if err := e.removeEntry(workingPath, workInfo); err != nil {
				return fmt.Errorf("failed to remove old copy: %w", err)
			}
			if err := e.copyEntry(ent, workingPath); err != nil {
				return fmt.Errorf("failed to copy: %w", err)
			}
		}
		e.reporter.Report(report.Event{Action: report.ActionUpdated, Name: ent.Name, DryRun: e.dryRun})

	case StateAhead:
		e.reporter.Report(report.Event{Action: report.ActionNewer, Name: ent.Name})

	default:
		e.reporter.Report(report.Event{Action: report.ActionUpToDate, Name: ent.Name})
	}
	return nil
}

// copyEntry copies a manifest source into place according to its kind
func (e *Engine) copyEntry(ent manifest.Entry, dst string) error {
	if ent.Kind == entry.KindBundle {
		return e.copyTree(ent.Path, dst)
	}
	return e.copyFile(ent.Path, dst)
}

// clearDanglingLink removes a symlink at path whose target is gone, which
// Stat reports as missing but which would block the copy
func (e *Engine) clearDanglingLink(path string) error {
	lstater, ok := e.fs.(afero.Lstater)
	if !ok {
		return nil
	}
	if _, _, err := lstater.LstatIfPossible(path); err != nil {
		return nil
	}
	e.logger.Debug("removing dangling symlink", "path", path)
	return e.fs.Remove(path)
}

// quarantine moves snapshot entries that are not in the manifest into the
// quarantine directory
func (e *Engine) quarantine(snapshot []workdir.Item, names map[string]bool, workDir string, result *Result) error {
	qname := e.cfg.Sync.QuarantineDir

	var toMove []string
	for _, it := range snapshot {
		if names[it.Name] || it.Name == qname {
			continue
		}
		toMove = append(toMove, it.Name)
	}
	if len(toMove) == 0 {
		return nil
	}

	qdir := e.cfg.QuarantinePath(workDir)
	info, err := e.fs.Stat(qdir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("quarantine path %s exists and is not a directory", qdir)
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("failed to stat quarantine directory: %w", err)
	case err != nil:
		if !e.dryRun {
			if err := e.fs.Mkdir(qdir, 0755); err != nil {
				return fmt.Errorf("failed to create quarantine directory: %w", err)
			}
		}
		result.QuarantineCreated = true
		e.reporter.Report(report.Event{Action: report.ActionQuarantineCreated, Dir: qname, DryRun: e.dryRun})
	}

	for _, name := range toMove {
		src := filepath.Join(workDir, name)
		dst, err := e.quarantineTarget(qdir, name)
		if err != nil {
			return err
		}

		e.logger.Debug("quarantining entry", "name", name, "dest", dst)
		if !e.dryRun {
			if err := e.fs.Rename(src, dst); err != nil {
				return fmt.Errorf("failed to move %s: %w", name, err)
			}
		}
		result.Quarantined = append(result.Quarantined, name)
		e.reporter.Report(report.Event{Action: report.ActionQuarantined, Name: name, Dir: qname, DryRun: e.dryRun})
	}
	return nil
}

// quarantineTarget picks a free destination for name inside qdir. Earlier
// quarantined copies are never overwritten; a numeric suffix is appended instead.
func (e *Engine) quarantineTarget(qdir, name string) (string, error) {
	dst := filepath.Join(qdir, name)
	for i := 1; ; i++ {
		exists, err := e.exists(dst)
		if err != nil {
			return "", err
		}
		if !exists {
			return dst, nil
		}
		dst = filepath.Join(qdir, fmt.Sprintf("%s.%d", name, i))
	}
}

func (e *Engine) exists(path string) (bool, error) {
	var err error
	if lstater, ok := e.fs.(afero.Lstater); ok {
		_, _, err = lstater.LstatIfPossible(path)
	} else {
		_, err = e.fs.Stat(path)
	}
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/schaermu/stickupdate/internal/entry"
)

// DefaultPath is the manifest file name looked up in the current directory
const DefaultPath = "manifest.txt"

var (
	ErrManifestNotFound = errors.New("manifest not found")
	ErrManifestNotFile  = errors.New("manifest is not a file")

	ErrEntryNotExist  = errors.New("does not exist")
	ErrNotBundleDir   = errors.New("should be a directory (bundle)")
	ErrNotRegularFile = errors.New("is not a file")
	ErrDuplicateName  = errors.New("duplicate name")
	ErrReservedName   = errors.New("name is reserved")
)

// Entry is a validated manifest line
type Entry struct {
	// Path is the absolute, home-expanded source path
	Path string
	// Name is the base name the entry has inside the working directory
	Name string
	Kind entry.Kind
	Line int
}

// LineError reports a manifest line that failed validation
type LineError struct {
	Line int
	Path string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("path '%s' on line %d %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Options controls how manifest lines are classified and validated
type Options struct {
	Classifier entry.Classifier
	// ReservedNames are base names no entry may use, such as the quarantine directory
	ReservedNames []string
}

// Load reads the manifest at path and validates every entry against fs.
// The first invalid line aborts loading; no partial manifest is returned.
func Load(fs afero.Fs, path string, opts Options) ([]Entry, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat manifest %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFile, path)
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var entries []Entry
	seen := make(map[string]int)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++

		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || opts.Classifier.Ignored(raw) {
			continue
		}

		e, err := validateLine(fs, raw, lineNumber, opts)
		if err != nil {
			return nil, err
		}

		if prev, ok := seen[e.Name]; ok {
			return nil, &LineError{
				Line: lineNumber,
				Path: e.Path,
				Err:  fmt.Errorf("%w %q (first listed on line %d)", ErrDuplicateName, e.Name, prev),
			}
		}
		seen[e.Name] = lineNumber

		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest %s: %w", path, err)
	}

	return entries, nil
}

func validateLine(fs afero.Fs, raw string, lineNumber int, opts Options) (Entry, error) {
	path, err := homedir.Expand(raw)
	if err != nil {
		return Entry{}, &LineError{Line: lineNumber, Path: raw, Err: err}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	name := filepath.Base(path)
	for _, reserved := range opts.ReservedNames {
		if name == reserved {
			return Entry{}, &LineError{Line: lineNumber, Path: path, Err: fmt.Errorf("%w: %q", ErrReservedName, name)}
		}
	}

	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, &LineError{Line: lineNumber, Path: path, Err: ErrEntryNotExist}
		}
		return Entry{}, &LineError{Line: lineNumber, Path: path, Err: err}
	}

	kind := opts.Classifier.Kind(path)
	if !entry.Matches(kind, info) {
		if kind == entry.KindBundle {
			return Entry{}, &LineError{Line: lineNumber, Path: path, Err: ErrNotBundleDir}
		}
		return Entry{}, &LineError{Line: lineNumber, Path: path, Err: ErrNotRegularFile}
	}

	return Entry{
		Path: path,
		Name: name,
		Kind: kind,
		Line: lineNumber,
	}, nil
}

// Names returns the set of entry base names
func Names(entries []Entry) map[string]bool {
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name] = true
	}
	return names
}

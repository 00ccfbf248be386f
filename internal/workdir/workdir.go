package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/schaermu/stickupdate/internal/entry"
)

// TempPrefix marks in-flight copies written into the working directory
const TempPrefix = ".stickupdate-tmp-"

var (
	ErrDirNotExist   = errors.New("directory does not exist")
	ErrNotDir        = errors.New("not a directory")
	ErrNotAccessible = errors.New("directory is not accessible for read/write")
)

// Item is an entry observed directly inside the working directory
type Item struct {
	Name string
	Kind entry.Kind
}

// Check verifies that dir exists, is a directory and can be read and written
func Check(fs afero.Fs, dir string) error {
	info, err := fs.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrDirNotExist, dir)
		}
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, dir)
	}

	// Access bits can only be asked of the real filesystem.
	if _, ok := fs.(*afero.OsFs); ok {
		if err := checkAccess(dir); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotAccessible, dir, err)
		}
	}
	return nil
}

// Scan lists the immediate children of dir that the tool tracks: regular
// files and bundle directories. Metadata names and in-flight temp files are
// skipped. Symlinks are followed to determine the kind.
func Scan(fs afero.Fs, dir string, c entry.Classifier) ([]Item, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	items := make([]Item, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if c.Ignored(name) || strings.HasPrefix(name, TempPrefix) {
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := fs.Stat(filepath.Join(dir, name))
			if err != nil {
				// Dangling link: neither a file nor a bundle.
				continue
			}
			info = target
		}

		kind := c.Kind(name)
		switch {
		case info.Mode().IsRegular():
			items = append(items, Item{Name: name, Kind: entry.KindFile})
		case info.IsDir() && kind == entry.KindBundle:
			items = append(items, Item{Name: name, Kind: entry.KindBundle})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// Names returns the item names in order
func Names(items []Item) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return names
}

package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

// Epoch is a fixed, whole-second reference time for fixtures
var Epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// WriteFile creates path (and its parents) with contents and sets its mtime
func WriteFile(t *testing.T, path, contents string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	SetMtime(t, path, mtime)
}

// MakeBundle creates a bundle directory holding files (relative path -> contents).
// Every file and directory inside, and the bundle itself, gets mtime.
func MakeBundle(t *testing.T, path string, files map[string]string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		WriteFile(t, filepath.Join(path, name), files[name], mtime)
	}

	// Directories last, deepest first, so writing children does not bump them again.
	var dirs []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", path, err)
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		SetMtime(t, dirs[i], mtime)
	}
}

// SetMtime sets both access and modification time of path
func SetMtime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// Mtime returns the modification time of path
func Mtime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.ModTime()
}

// ReadFile returns the contents of path
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// Tree returns a recursive listing of root: relative path -> description of
// kind, mode, mtime and content hash. Two equal trees are byte-for-byte equal
// as far as the tool is concerned.
func Tree(t *testing.T, root string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		info, err := os.Lstat(p)
		if err != nil {
			return err
		}

		switch {
		case info.IsDir():
			tree[rel] = fmt.Sprintf("dir %o %d", info.Mode().Perm(), info.ModTime().UnixNano())
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			tree[rel] = "link " + target
		default:
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			sum := sha256.Sum256(data)
			tree[rel] = fmt.Sprintf("file %o %d %s", info.Mode().Perm(), info.ModTime().UnixNano(), hex.EncodeToString(sum[:]))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return tree
}

// TopLevel returns the sorted names directly inside dir
func TopLevel(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// Contents returns the files inside a tree keyed by relative path, ignoring
// metadata. Useful for comparing a copy to its source.
func Contents(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for rel, desc := range Tree(t, root) {
		if strings.HasPrefix(desc, "file ") {
			out[rel] = ReadFile(t, filepath.Join(root, rel))
		}
	}
	return out
}

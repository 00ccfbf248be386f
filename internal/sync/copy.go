package sync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/schaermu/stickupdate/internal/workdir"
)

// permBits are the mode bits carried over to copies
const permBits = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky

// copyFile copies a file from src to dst with atomic write, preserving
// permissions and modification time
func (e *Engine) copyFile(src, dst string) error {
	srcFile, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	// Create temp file in destination directory
	tmpFile, err := afero.TempFile(e.fs, filepath.Dir(dst), workdir.TempPrefix+"*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = e.fs.Remove(tmpPath)
	}() // cleanup on error

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := e.fs.Chmod(tmpPath, srcInfo.Mode()&permBits); err != nil {
		return err
	}

	// Atomic rename
	if err := e.fs.Rename(tmpPath, dst); err != nil {
		return err
	}

	return e.fs.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime())
}

type dirMeta struct {
	path    string
	mode    os.FileMode
	modTime time.Time
}

// copyTree recursively copies the directory src to dst. Files keep their
// permissions and modification times, symlinks are recreated when the
// filesystem supports them, and directory metadata is applied last so that
// populating a directory does not bump its mtime afterwards.
func (e *Engine) copyTree(src, dst string) error {
	root, err := e.resolveLink(src)
	if err != nil {
		return err
	}

	var dirs []dirMeta
	err = afero.Walk(e.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			return e.copySymlink(path, target)
		case info.IsDir():
			if err := e.fs.MkdirAll(target, info.Mode().Perm()|0700); err != nil {
				return err
			}
			dirs = append(dirs, dirMeta{path: target, mode: info.Mode(), modTime: info.ModTime()})
			return nil
		case info.Mode().IsRegular():
			return e.copyFile(path, target)
		default:
			e.logger.Warn("skipping special file in bundle", "path", path, "mode", info.Mode().String())
			return nil
		}
	})
	if err != nil {
		return err
	}

	// Walk visits parents before children, so go backwards.
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if err := e.fs.Chmod(d.path, d.mode&permBits); err != nil {
			return err
		}
		if err := e.fs.Chtimes(d.path, d.modTime, d.modTime); err != nil {
			return err
		}
	}
	return nil
}

// copySymlink recreates the link at dst. Filesystems without symlink
// support get a copy of the regular file the link points to.
func (e *Engine) copySymlink(src, dst string) error {
	reader, canRead := e.fs.(afero.LinkReader)
	linker, canLink := e.fs.(afero.Linker)
	if canRead && canLink {
		target, err := reader.ReadlinkIfPossible(src)
		if err != nil {
			return err
		}
		return linker.SymlinkIfPossible(target, dst)
	}

	info, err := e.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to resolve symlink %s: %w", src, err)
	}
	if !info.Mode().IsRegular() {
		e.logger.Warn("skipping symlink to non-regular file", "path", src)
		return nil
	}
	return e.copyFile(src, dst)
}

// resolveLink follows path while it is a symlink so a linked bundle is
// copied as the directory it points to
func (e *Engine) resolveLink(path string) (string, error) {
	reader, ok := e.fs.(afero.LinkReader)
	if !ok {
		return path, nil
	}
	lstater, ok := e.fs.(afero.Lstater)
	if !ok {
		return path, nil
	}

	for hops := 0; hops < 40; hops++ {
		info, _, err := lstater.LstatIfPossible(path)
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return path, nil
		}
		target, err := reader.ReadlinkIfPossible(path)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		path = target
	}
	return "", fmt.Errorf("too many levels of symbolic links: %s", path)
}

// removeEntry deletes the working copy at path; directories are removed recursively
func (e *Engine) removeEntry(path string, info os.FileInfo) error {
	if info.IsDir() {
		return e.fs.RemoveAll(path)
	}
	return e.fs.Remove(path)
}

package entry

import (
	"os"
	"path/filepath"
	"strings"
)

// Kind distinguishes the two shapes of artifact the tool tracks
type Kind int

const (
	// KindFile is a regular file, copied as a single file
	KindFile Kind = iota
	// KindBundle is a directory tracked as one unit and copied recursively
	KindBundle
)

// DefaultBundleSuffix marks a directory as a bundle
const DefaultBundleSuffix = ".app"

// DefaultIgnoreNames are filesystem metadata files that are never tracked
var DefaultIgnoreNames = []string{".DS_Store"}

func (k Kind) String() string {
	switch k {
	case KindBundle:
		return "bundle"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Classifier decides the kind of a path by name and filters metadata noise
type Classifier struct {
	BundleSuffix string
	IgnoreNames  []string
}

// DefaultClassifier returns the classifier used when nothing is configured
func DefaultClassifier() Classifier {
	return Classifier{
		BundleSuffix: DefaultBundleSuffix,
		IgnoreNames:  DefaultIgnoreNames,
	}
}

// Kind returns KindBundle if the base name of path carries the bundle suffix
func (c Classifier) Kind(path string) Kind {
	if c.BundleSuffix != "" && strings.HasSuffix(filepath.Base(path), c.BundleSuffix) {
		return KindBundle
	}
	return KindFile
}

// Ignored reports whether the base name of path is a metadata name
func (c Classifier) Ignored(path string) bool {
	base := filepath.Base(path)
	for _, name := range c.IgnoreNames {
		if base == name {
			return true
		}
	}
	return false
}

// Matches reports whether info has the filesystem shape expected for kind.
// Bundles must be directories, files must be regular files.
func Matches(kind Kind, info os.FileInfo) bool {
	if kind == KindBundle {
		return info.IsDir()
	}
	return info.Mode().IsRegular()
}

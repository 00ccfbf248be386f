package entry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassifierKind(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		path string
		want Kind
	}{
		{"/src/Editor.app", KindBundle},
		{"Editor.app", KindBundle},
		{"/src/readme.txt", KindFile},
		{"/src/app", KindFile},
		{"/src/Editor.app.zip", KindFile},
		{"/src/.app", KindBundle},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := c.Kind(tt.path); got != tt.want {
				t.Errorf("Kind(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestClassifierKind_CustomSuffix(t *testing.T) {
	c := Classifier{BundleSuffix: ".bundle"}

	if c.Kind("/x/Thing.bundle") != KindBundle {
		t.Error("expected .bundle to classify as bundle")
	}
	if c.Kind("/x/Thing.app") != KindFile {
		t.Error("expected .app to classify as file with custom suffix")
	}
}

func TestClassifierIgnored(t *testing.T) {
	c := DefaultClassifier()

	if !c.Ignored("/any/where/.DS_Store") {
		t.Error("expected .DS_Store to be ignored")
	}
	if !c.Ignored(".DS_Store") {
		t.Error("expected bare .DS_Store to be ignored")
	}
	if c.Ignored("/any/where/DS_Store") {
		t.Error("DS_Store without dot should not be ignored")
	}
	if c.Ignored("/a/.DS_Store/file.txt") {
		t.Error("only the base name is matched")
	}
}

func TestMatches(t *testing.T) {
	tmpDir := t.TempDir()

	dir := filepath.Join(tmpDir, "Tool.app")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	fileInfo, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}

	if !Matches(KindBundle, dirInfo) {
		t.Error("directory should match bundle")
	}
	if Matches(KindFile, dirInfo) {
		t.Error("directory should not match file")
	}
	if !Matches(KindFile, fileInfo) {
		t.Error("regular file should match file")
	}
	if Matches(KindBundle, fileInfo) {
		t.Error("regular file should not match bundle")
	}
}

func TestKindString(t *testing.T) {
	if KindFile.String() != "file" || KindBundle.String() != "bundle" {
		t.Errorf("unexpected strings: %s %s", KindFile, KindBundle)
	}
	if Kind(42).String() != "unknown" {
		t.Errorf("unexpected string for invalid kind: %s", Kind(42))
	}
}

package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) {
		t.Error("Expected FileExists for existing file")
	}
	if FileExists(filepath.Join(dir, "absent.txt")) {
		t.Error("Expected false for missing file")
	}
	if FileExists(dir) {
		t.Error("Directories are not files")
	}
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	if !DirExists(dir) {
		t.Error("Expected DirExists for temp dir")
	}
	if DirExists(filepath.Join(dir, "nope")) {
		t.Error("Expected false for missing dir")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	if err := EnsureDir(nested); err != nil {
		t.Fatalf("EnsureDir() error: %v", err)
	}
	if !DirExists(nested) {
		t.Error("Expected nested dir to exist")
	}
	// Calling again on an existing dir is a no-op.
	if err := EnsureDir(nested); err != nil {
		t.Fatalf("EnsureDir() on existing dir error: %v", err)
	}
}

func TestIsDirEmpty(t *testing.T) {
	dir := t.TempDir()

	empty, err := IsDirEmpty(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !empty {
		t.Error("Fresh temp dir should be empty")
	}

	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	empty, err = IsDirEmpty(dir)
	if err != nil {
		t.Fatal(err)
	}
	if empty {
		t.Error("Dir with a file should not be empty")
	}
}

func TestListSubdirectories(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"shop-b", "shop-a"} {
		if err := os.Mkdir(filepath.Join(root, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	dirs, err := ListSubdirectories(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 || dirs[0] != "shop-a" || dirs[1] != "shop-b" {
		t.Errorf("ListSubdirectories = %v, want [shop-a shop-b]", dirs)
	}
}

func TestRemoveDirContents(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub", "deep"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveDirContents(dir); err != nil {
		t.Fatalf("RemoveDirContents failed: %v", err)
	}

	empty, err := IsDirEmpty(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !empty {
		t.Error("Directory should be empty after RemoveDirContents")
	}
	if !DirExists(dir) {
		t.Error("Directory itself must be preserved")
	}
}

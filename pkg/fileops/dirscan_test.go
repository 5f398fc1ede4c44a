package fileops

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// createTempDirStructure creates a temporary directory with a predefined structure for testing
func createTempDirStructure(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	files := map[string]string{
		"README.md":                 "# Project README",
		"src/main.go":               "package main",
		"src/main/app.go":           "package main",
		"src/test/test.go":          "package test",
		"build/output.bin":          "binary content",
		"node_modules/lib/index.js": "console.log('hello')",
		".git/config":               "[core]",
		".hidden/secret.txt":        "secret",
		"docs/guide.md":             "# Guide",
		"docs/api/reference.md":     "# API Reference",
		".gitignore":                "*.log",
		"package.json":              `{"name": "test"}`,
		"large-file.dat":            strings.Repeat("x", 1000),
	}

	for filePath, content := range files {
		fullPath := filepath.Join(tempDir, filePath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", filePath, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to create file %s: %v", filePath, err)
		}
	}

	return tempDir
}

func scanPaths(t *testing.T, root string, opts *DirectoryScanOptions) []string {
	t.Helper()
	scanner, err := NewDirectoryScanner(root, opts)
	if err != nil {
		t.Fatalf("NewDirectoryScanner() error = %v", err)
	}
	defer scanner.Close()

	files, err := scanner.ScanDirectory()
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths
}

func TestNewDirectoryScanner(t *testing.T) {
	tempDir := createTempDirStructure(t)

	tests := []struct {
		name      string
		scanPath  string
		wantError bool
		errorText string
	}{
		{name: "valid directory", scanPath: tempDir},
		{name: "empty path", scanPath: "  ", wantError: true, errorText: "cannot be empty"},
		{name: "file instead of directory", scanPath: filepath.Join(tempDir, "README.md"), wantError: true, errorText: "not a directory"},
		{name: "missing directory", scanPath: filepath.Join(tempDir, "missing"), wantError: true, errorText: "cannot access"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner, err := NewDirectoryScanner(tt.scanPath, nil)
			if tt.wantError {
				if err == nil {
					scanner.Close()
					t.Fatalf("NewDirectoryScanner(%q) expected error", tt.scanPath)
				}
				if !strings.Contains(err.Error(), tt.errorText) {
					t.Errorf("error = %v, want it to contain %q", err, tt.errorText)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDirectoryScanner(%q) unexpected error: %v", tt.scanPath, err)
			}
			scanner.Close()
		})
	}
}

func TestScanDirectory_DefaultsSkipNoiseDirectories(t *testing.T) {
	tempDir := createTempDirStructure(t)

	paths := scanPaths(t, tempDir, nil)

	for _, unwanted := range []string{"node_modules/lib/index.js", ".git/config", "build/output.bin", ".hidden/secret.txt", ".gitignore"} {
		if slices.Contains(paths, unwanted) {
			t.Errorf("ScanDirectory() should skip %s, got %v", unwanted, paths)
		}
	}
	for _, wanted := range []string{"README.md", "src/main.go", "src/main/app.go", "docs/api/reference.md", "package.json"} {
		if !slices.Contains(paths, wanted) {
			t.Errorf("ScanDirectory() missing %s, got %v", wanted, paths)
		}
	}
}

func TestScanDirectory_DeterministicOrder(t *testing.T) {
	tempDir := createTempDirStructure(t)

	first := scanPaths(t, tempDir, nil)
	second := scanPaths(t, tempDir, nil)

	if !slices.Equal(first, second) {
		t.Errorf("scan order differs between runs:\n%v\n%v", first, second)
	}
	if first[0] != "README.md" {
		t.Errorf("first entry = %s, want README.md", first[0])
	}
}

func TestScanDirectory_ExcludePaths(t *testing.T) {
	tempDir := createTempDirStructure(t)

	opts := DefaultScanOptions()
	opts.ExcludePaths = map[string]bool{"src/main.go": true, "docs/guide.md": true}

	scanner, err := NewDirectoryScanner(tempDir, opts)
	if err != nil {
		t.Fatalf("NewDirectoryScanner() error = %v", err)
	}
	defer scanner.Close()

	files, err := scanner.ScanDirectory()
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}

	for _, f := range files {
		if opts.ExcludePaths[f.Path] {
			t.Errorf("excluded path %s was reported", f.Path)
		}
	}
	if got := scanner.GetScanStats().ExcludedFiles; got != 2 {
		t.Errorf("ExcludedFiles = %d, want 2", got)
	}
}

func TestScanDirectory_OnFile(t *testing.T) {
	tempDir := createTempDirStructure(t)
	stop := errors.New("stop")

	var seen []string
	opts := DefaultScanOptions()
	opts.OnFile = func(fi FileInfo) error {
		seen = append(seen, fi.Path)
		if len(seen) == 2 {
			return stop
		}
		return nil
	}

	scanner, err := NewDirectoryScanner(tempDir, opts)
	if err != nil {
		t.Fatalf("NewDirectoryScanner() error = %v", err)
	}
	defer scanner.Close()

	if _, err := scanner.ScanDirectory(); !errors.Is(err, stop) {
		t.Fatalf("ScanDirectory() error = %v, want %v", err, stop)
	}
	if len(seen) != 2 || seen[0] != "README.md" {
		t.Errorf("OnFile saw %v, want README.md first and two entries", seen)
	}

	scanner.SetOnFile(nil)
	files, err := scanner.ScanDirectory()
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}
	if len(files) <= 2 {
		t.Errorf("full scan returned %d files, want more than 2", len(files))
	}
}

func TestScanDirectory_FileFilterAndDepth(t *testing.T) {
	tempDir := createTempDirStructure(t)

	opts := DefaultScanOptions()
	opts.MaxDepth = 2
	opts.FileFilter = func(rel string) bool { return strings.HasSuffix(rel, ".go") }

	paths := scanPaths(t, tempDir, opts)

	if !slices.Equal(paths, []string{"src/main.go"}) {
		t.Errorf("paths = %v, want [src/main.go]", paths)
	}
}

func TestScanDirectory_IncludeNodeModulesWhenNotSkipped(t *testing.T) {
	tempDir := createTempDirStructure(t)

	opts := DefaultScanOptions()
	opts.SkipPatterns = slices.DeleteFunc(DefaultSkipPatterns(), func(p string) bool { return p == "node_modules" })

	paths := scanPaths(t, tempDir, opts)
	if !slices.Contains(paths, "node_modules/lib/index.js") {
		t.Errorf("expected node_modules content when not skipped, got %v", paths)
	}
}

func TestSecureDirectoryScanner_ReadFile(t *testing.T) {
	tempDir := createTempDirStructure(t)

	scanner, err := NewDirectoryScanner(tempDir, nil)
	if err != nil {
		t.Fatalf("NewDirectoryScanner() error = %v", err)
	}
	defer scanner.Close()

	data, err := scanner.ReadFile("src/main.go", 0)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "package main" {
		t.Errorf("ReadFile() = %q", data)
	}

	if _, err := scanner.ReadFile("large-file.dat", 10); err == nil {
		t.Error("ReadFile() should reject files above the size limit")
	}

	if _, err := scanner.ReadFile("../outside.txt", 0); err == nil {
		t.Error("ReadFile() should not escape the scan root")
	}
}

func TestSecureDirectoryScanner_Closed(t *testing.T) {
	tempDir := createTempDirStructure(t)

	scanner, err := NewDirectoryScanner(tempDir, nil)
	if err != nil {
		t.Fatalf("NewDirectoryScanner() error = %v", err)
	}
	scanner.Close()

	if _, err := scanner.ScanDirectory(); err == nil {
		t.Error("ScanDirectory() on closed scanner should fail")
	}
	if err := scanner.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}

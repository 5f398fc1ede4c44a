package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ValidatePathSecurity performs security validation on a file path.
//
// The function validates:
//   - Empty or whitespace-only paths
//   - Path traversal attempts using ".." segments
//   - Absolute paths pointing into reserved system directories
//
// It performs static analysis only and does not access the filesystem, except
// for symlink resolution inside IsReservedDirectory.
func ValidatePathSecurity(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	for _, segment := range strings.FieldsFunc(path, isPathSeparator) {
		if segment == ".." {
			return fmt.Errorf("path traversal not allowed")
		}
	}

	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(path) && IsReservedDirectory(cleanPath) {
		return fmt.Errorf("path points into a reserved directory: %s", cleanPath)
	}

	return nil
}

func isPathSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// ExpandPath expands a path that starts with "~/" to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// IsReservedDirectory checks if the path is a system or reserved directory
// that must never be scanned or written to.
//
// The function checks:
//   - System directories (like /etc, /bin, C:\Windows, etc.)
//   - Critical user directories (like ~/.ssh, ~/.gnupg)
//   - Symlink-resolved destinations of both the path and the reserved entries
//
// User temp directories below a reserved prefix are allowed.
func IsReservedDirectory(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	absPath = filepath.Clean(absPath)

	if resolvedPath, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolvedPath
	}

	if absPath == "/" || absPath == "\\" || absPath == "C:\\" {
		return true
	}

	for _, reserved := range getReservedDirectories() {
		reservedAbs, err := filepath.Abs(reserved)
		if err != nil {
			continue
		}
		if resolvedReserved, err := filepath.EvalSymlinks(reservedAbs); err == nil {
			reservedAbs = resolvedReserved
		}
		reservedAbs = filepath.Clean(reservedAbs)

		if strings.EqualFold(absPath, reservedAbs) {
			return true
		}

		reservedPrefix := strings.ToLower(reservedAbs) + string(os.PathSeparator)
		if strings.HasPrefix(strings.ToLower(absPath), reservedPrefix) {
			if isUserTempDirectory(absPath) {
				continue
			}
			return true
		}
	}

	return false
}

// getReservedDirectories returns platform-specific reserved directories
func getReservedDirectories() []string {
	var reservedDirs []string

	switch runtime.GOOS {
	case "windows":
		reservedDirs = []string{
			"C:\\Windows",
			"C:\\Program Files",
			"C:\\Program Files (x86)",
			"C:\\ProgramData\\Microsoft",
		}

	case "darwin":
		reservedDirs = []string{
			"/System",
			"/usr/bin",
			"/usr/sbin",
			"/bin",
			"/sbin",
			"/etc",
			"/var/log",
			"/var/db",
			"/var/root",
			"/private/etc",
		}

	default:
		reservedDirs = []string{
			"/bin",
			"/sbin",
			"/usr/bin",
			"/usr/sbin",
			"/etc",
			"/boot",
			"/dev",
			"/proc",
			"/sys",
			"/var/log",
			"/var/lib",
			"/var/cache",
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		reservedDirs = append(reservedDirs,
			filepath.Join(home, ".ssh"),
			filepath.Join(home, ".gnupg"),
		)
	}

	return reservedDirs
}

// isUserTempDirectory detects legitimate user temp directories
func isUserTempDirectory(path string) bool {
	if runtime.GOOS == "darwin" && strings.Contains(path, "/var/folders/") {
		return true
	}

	if runtime.GOOS == "linux" && (strings.HasPrefix(path, "/tmp/") || path == "/tmp") {
		return true
	}

	if runtime.GOOS == "windows" {
		lower := strings.ToLower(path)
		if strings.Contains(lower, "\\temp\\") || strings.Contains(lower, "\\tmp\\") {
			return true
		}
	}

	return strings.HasPrefix(filepath.Clean(path), filepath.Clean(os.TempDir()))
}

// Package fileops provides secure file operations used by the analysis pipeline.
//
// The package covers three concerns:
//
//   - Directory scanning inside an os.Root boundary, with depth limits, skip
//     patterns, symlink containment and an exclusion set used when a crawl is
//     resumed from a checkpoint (see SecureDirectoryScanner).
//   - Path validation: traversal rejection, reserved/system directory
//     detection and "~/" expansion.
//   - Atomic writes: checkpoint and cache files are written to a temporary
//     sibling and renamed into place, so a killed process never leaves a
//     half-written state file behind.
//
// # Example: resumable scan
//
//	opts := &fileops.DirectoryScanOptions{
//	    MaxDepth:     20,
//	    SkipPatterns: fileops.DefaultSkipPatterns(),
//	    ExcludePaths: map[string]bool{"src/already/seen.ts": true},
//	}
//	scanner, err := fileops.NewDirectoryScanner("/path/to/checkout", opts)
//	if err != nil {
//	    return fmt.Errorf("create scanner: %w", err)
//	}
//	defer scanner.Close()
//	files, err := scanner.ScanDirectory()
package fileops

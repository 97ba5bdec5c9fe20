package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DumpSuffix marks offline workset dumps
const DumpSuffix = ".pv.json"

// DiscoverDumps scans the configured paths for offline dumps. The dump
// named by cfg.File comes first when set; duplicates are dropped.
func DiscoverDumps(cfg Config) []string {
	seen := make(map[string]bool)
	var result []string

	if cfg.File != "" {
		abs := absPath(cfg.File)
		seen[abs] = true
		result = append(result, abs)
	}

	for _, scanPath := range cfg.Discovery.ScanPaths {
		maxDepth := cfg.Discovery.MaxDepth
		if maxDepth <= 0 {
			maxDepth = 3
		}
		for _, f := range scanForDumps(scanPath, maxDepth) {
			if !seen[f] {
				seen[f] = true
				result = append(result, f)
			}
		}
	}

	return result
}

// scanForDumps walks a directory tree up to maxDepth levels deep, looking
// for dump files.
func scanForDumps(root string, maxDepth int) []string {
	root = absPath(expandHome(root))
	var results []string

	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return filepath.SkipDir
		}

		currentDepth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
		if d.IsDir() {
			if currentDepth > maxDepth {
				return filepath.SkipDir
			}
			// Skip hidden directories except the project directory
			name := d.Name()
			if path != root && strings.HasPrefix(name, ".") && name != ProjectDir {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasSuffix(d.Name(), DumpSuffix) {
			results = append(results, path)
		}
		return nil
	})

	sort.Strings(results)
	return results
}

// DetectProjectRoot finds the project root by walking up from the current
// directory looking for a .pv directory.
func DetectProjectRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	return findProjectRoot(dir)
}

// findProjectRoot walks up from dir looking for a .pv/ directory.
func findProjectRoot(dir string) (string, bool) {
	home, _ := os.UserHomeDir()

	for {
		projectDir := filepath.Join(dir, ProjectDir)
		if info, err := os.Stat(projectDir); err == nil && info.IsDir() {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		// Don't go above home directory
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

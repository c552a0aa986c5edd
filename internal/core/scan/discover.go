package scan

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Discover walks root once and returns the sorted file index shared by all
// pattern workers. Directories matching an exclude glob are pruned, files are
// kept when an exclude glob does not match and the suffix appears in the
// extension allow-list.
//
// The index holds paths only; file contents are streamed later so large trees
// do not pin memory here.
func Discover(root string, extensions, excludeDirs, excludeFiles []string) ([]string, error) {
	dirGlobs, err := compileGlobs(excludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(excludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}

	suffixes := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
		if ext != "" {
			suffixes = append(suffixes, "."+ext)
		}
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The root itself being missing or unreadable is a
			// misconfiguration; a directory that vanished or turned
			// unreadable mid-walk should not sink the whole discovery.
			if path == root {
				return fmt.Errorf("scan root %s: %w", root, err)
			}
			slog.Warn("skipping unreadable path during discovery", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		base := filepath.Base(path)
		if d.IsDir() {
			if path != root {
				for _, g := range dirGlobs {
					if g.Match(base) {
						return filepath.SkipDir
					}
				}
			}
			return nil
		}

		if !hasAllowedSuffix(base, suffixes) {
			return nil
		}
		for _, g := range fileGlobs {
			if g.Match(base) {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func compileGlobs(patterns []string, what string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", what, p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func hasAllowedSuffix(base string, suffixes []string) bool {
	lower := strings.ToLower(base)
	for _, suffix := range suffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

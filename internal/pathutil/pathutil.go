// Package pathutil provides path helpers for sandbox confinement: symlink
// resolution with boundary checks and containment tests used when deriving
// a confined filesystem surface from classified arguments.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Resolve makes path absolute relative to workdir and follows symlinks.
// Resolution failures (broken symlink, nonexistent target) return the
// lexically cleaned absolute path: a path that does not exist yet cannot
// broaden access, and kernel enforcement still applies at use time.
func Resolve(workdir, path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		if workdir == "" {
			var err error
			abs, err = filepath.Abs(path)
			if err != nil {
				return "", fmt.Errorf("pathutil: cannot absolutize %q: %w", path, err)
			}
		} else {
			abs = filepath.Join(workdir, path)
		}
	}
	abs = filepath.Clean(abs)

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil
	}
	if EscapesBoundary(abs, resolved) {
		return "", fmt.Errorf("pathutil: %q resolves to %q outside its directory", abs, resolved)
	}
	return resolved, nil
}

// ResolveAll resolves every path in paths via Resolve.
func ResolveAll(workdir string, paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		resolved, err := Resolve(workdir, p)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

// EscapesBoundary reports whether following a symlink broadened access
// scope: the resolved path must stay at or below the directory containing
// the original path.
func EscapesBoundary(originalPath, resolvedPath string) bool {
	boundary := filepath.Dir(filepath.Clean(originalPath))
	resolved := filepath.Clean(resolvedPath)
	if resolved == boundary || boundary == string(filepath.Separator) {
		return false
	}
	return !strings.HasPrefix(resolved, boundary+string(filepath.Separator))
}

// IsWithin reports whether path is root or lexically contained in root.
// Both inputs should already be absolute and cleaned.
func IsWithin(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// HasParentEscape reports whether any path segment is "..", the pattern a
// restricted shell command uses to climb out of its sandbox tree.
func HasParentEscape(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// Package utils provides internal helpers shared by the relay packages.
//
// SecurePath confines user-supplied file paths to a base directory so file
// consumers cannot be pointed outside of it through traversal sequences,
// absolute paths or symlinks.
package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hyp3rd/ewrap"
)

var (
	// ErrEmptyPath is returned for an empty path.
	ErrEmptyPath = ewrap.New("path cannot be empty")
	// ErrPathTraversal is returned for paths containing ".." elements.
	ErrPathTraversal = ewrap.New("invalid path contains directory traversal sequence")
	// ErrOutsideBase is returned for paths that resolve outside the base directory.
	ErrOutsideBase = ewrap.New("path resolves outside of the base directory")
)

// SecurePath returns the absolute form of path confined to base. Relative
// paths are joined to base; absolute paths are accepted only when already
// inside it. An empty base means the system temporary directory. When the
// target exists, symlinks are resolved and must stay inside base too.
func SecurePath(base, path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	if base == "" {
		base = os.TempDir()
	}

	base, err := filepath.Abs(base)
	if err != nil {
		return "", ewrap.Wrap(err, "resolving base directory").WithMetadata("base", base)
	}

	for element := range strings.SplitSeq(filepath.ToSlash(path), "/") {
		if element == ".." {
			return "", ewrap.Wrap(ErrPathTraversal, "securing path").WithMetadata("path", path)
		}
	}

	fullPath := filepath.Clean(path)
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Join(base, fullPath)
	}

	if !within(base, fullPath) {
		return "", ewrap.Wrap(ErrOutsideBase, "securing path").WithMetadata("path", path)
	}

	resolved, err := filepath.EvalSymlinks(fullPath)
	if err == nil {
		resolvedBase, baseErr := filepath.EvalSymlinks(base)
		if baseErr != nil {
			resolvedBase = base
		}

		if !within(resolvedBase, resolved) {
			return "", ewrap.Wrap(ErrOutsideBase, "securing path").WithMetadata("path", path)
		}
	}

	return fullPath, nil
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Package security confines client-supplied paths to a root directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that escape the root directory.
var ErrOutsideRoot = errors.New("path is outside configured directory")

// PathValidator resolves paths relative to a root and rejects escapes,
// including escapes through symlinks.
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at root.
func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve configured directory: %w", err)
	}
	return &PathValidator{root: abs}, nil
}

// Root returns the absolute root directory.
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve returns the absolute form of path. Relative paths are taken
// relative to the root. The result must lie inside the root.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	abs := filepath.Clean(path)

	if !within(v.root, abs) && !within(v.realRoot(), abs) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	if !within(v.realRoot(), realPath(abs)) {
		return "", fmt.Errorf("%w: %s resolves through a symlink", ErrOutsideRoot, path)
	}
	return abs, nil
}

// ValidatePath is Resolve without the result.
func (v *PathValidator) ValidatePath(path string) error {
	_, err := v.Resolve(path)
	return err
}

func (v *PathValidator) realRoot() string {
	return realPath(v.root)
}

// realPath evaluates symlinks on the longest existing prefix of p.
func realPath(p string) string {
	var rest []string
	cur := p
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// IsDirectory reports whether path resolves to an existing directory
// inside the root.
func (v *PathValidator) IsDirectory(path string) bool {
	abs, err := v.Resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.IsDir()
}

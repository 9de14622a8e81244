// Package sandbox confines every file operation to a single root directory.
//
// Paths are checked after symlink resolution, so ".." segments, absolute
// paths and links pointing elsewhere all fail the same way: with a
// taskerr.KindPathViolation error, before anything is opened.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"taskrunner/pkg/taskerr"
)

// Sandbox resolves candidate paths against a fixed root. It holds no mutable
// state and is safe for concurrent use.
type Sandbox struct {
	root string // absolute, cleaned, symlink-free
}

// New creates the root directory if needed and pins its canonical form.
func New(root string) (*Sandbox, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("sandbox root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize sandbox root: %w", err)
	}
	slog.Debug("Sandbox root ready", "root", canonical)
	return &Sandbox{root: canonical}, nil
}

// Root returns the canonical sandbox root.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve validates candidate and returns its canonical absolute path.
// Relative candidates are taken relative to the root. The target itself
// does not need to exist, but every existing component is resolved.
func (s *Sandbox) Resolve(candidate string) (string, error) {
	if strings.TrimSpace(candidate) == "" {
		return "", taskerr.PathViolation("empty path")
	}

	target := candidate
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.root, target)
	}
	target = filepath.Clean(target)

	resolved, err := evalExisting(target)
	if err != nil {
		return "", taskerr.Wrap(taskerr.KindPathViolation, err, "cannot resolve %s", candidate)
	}
	if !s.contains(resolved) {
		slog.Warn("Rejected path outside sandbox", "path", candidate, "resolved", resolved)
		return "", taskerr.PathViolation("access outside %s is not allowed: %s", s.root, candidate)
	}
	return resolved, nil
}

// Rel returns abs relative to the root using forward slashes.
func (s *Sandbox) Rel(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func (s *Sandbox) contains(p string) bool {
	if p == s.root {
		return true
	}
	prefix := s.root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(p, prefix)
}

// isMissing reports whether err means the path does not exist, including a
// component in the middle that is a regular file.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// evalExisting resolves symlinks in the longest existing prefix of p and
// re-attaches the missing tail. p must already be clean and absolute, so the
// tail never contains "..".
func evalExisting(p string) (string, error) {
	cur := p
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := append([]string{resolved}, tail...)
			return filepath.Join(parts...), nil
		}
		if !isMissing(err) {
			return "", err
		}
		// A component that exists but cannot be followed is a dangling link.
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", fmt.Errorf("dangling symlink at %s", cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}

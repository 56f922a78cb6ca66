package placement

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guard keeps paths inside a root directory. The placer guards the output
// root; the MCP server guards the source folder.
type Guard struct {
	root string
}

// NewGuard creates a guard for the given root
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}

	// The root does not need to exist yet; init creates it later.
	return &Guard{root: root}, nil
}

// Root returns the guarded directory
func (g *Guard) Root() string {
	return g.root
}

// Check returns an error when path resolves outside the root
func (g *Guard) Check(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	within, err := g.IsWithin(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return fmt.Errorf("path is outside %s: %s", g.root, path)
	}
	return nil
}

// IsWithin checks if path is the root or one of its descendants. Symlinks
// are resolved for both sides when they exist.
func (g *Guard) IsWithin(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	absRoot, err := filepath.Abs(g.root)
	if err != nil {
		return false, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	cleanRoot := filepath.Clean(absRoot)

	realPath := resolveExisting(cleanPath)
	realRoot := cleanRoot
	if resolved, err := filepath.EvalSymlinks(cleanRoot); err == nil {
		realRoot = resolved
	}

	inside := func(p string) bool {
		return within(p, cleanRoot) || within(p, realRoot)
	}
	return inside(cleanPath) && inside(realPath), nil
}

// resolveExisting evaluates symlinks on the longest existing prefix of path
func resolveExisting(path string) string {
	rest := ""
	cur := path
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			if rest == "" {
				return resolved
			}
			return filepath.Join(resolved, rest)
		} else if !os.IsNotExist(err) {
			return path
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}

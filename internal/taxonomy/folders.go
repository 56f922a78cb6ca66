package taxonomy

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Materialize creates the folder of every indexed category and returns how
// many folders were ensured. Existing folders are left untouched.
func Materialize(ctx context.Context, idx *Index) (int, error) {
	created := 0
	for _, e := range idx.entries {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		if err := os.MkdirAll(e.FolderPath, DirPerm); err != nil {
			return created, fmt.Errorf("cannot create folder %s: %w", e.FolderPath, err)
		}
		created++
	}
	return created, nil
}

// WriteTree prints the definition as a folder tree limited to maxDepth levels.
// A maxDepth of zero or less prints the whole tree.
func WriteTree(w io.Writer, root *Node, maxDepth int) error {
	if root == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "📁 %s\n", Sanitize(root.Name)); err != nil {
		return err
	}
	return writeChildren(w, root.Children, "", 1, maxDepth)
}

func writeChildren(w io.Writer, children []*Node, prefix string, depth, maxDepth int) error {
	if maxDepth > 0 && depth >= maxDepth {
		return nil
	}

	named := make([]*Node, 0, len(children))
	for _, c := range children {
		if c != nil && Sanitize(c.Name) != "" {
			named = append(named, c)
		}
	}

	for i, child := range named {
		last := i == len(named)-1
		connector, next := "├── ", prefix+"│   "
		if last {
			connector, next = "└── ", prefix+"    "
		}
		if _, err := fmt.Fprintf(w, "%s%s📁 %s\n", prefix, connector, Sanitize(child.Name)); err != nil {
			return err
		}
		if err := writeChildren(w, child.Children, next, depth+1, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

package taxonomy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed ctd_structure.yaml
var defaultDefinition []byte

// Node is one category in a taxonomy definition tree
type Node struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Children    []*Node `yaml:"children,omitempty" json:"children,omitempty"`
}

// IsLeaf returns true if the node has no children
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Count returns the number of nodes in the subtree rooted at n
func (n *Node) Count() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, child := range n.Children {
		total += child.Count()
	}
	return total
}

// Default returns the built-in CTD definition (Modules 1 to 5)
func Default() *Node {
	root, err := ParseDefinition(defaultDefinition)
	if err != nil {
		// The embedded file is part of the binary; failing to parse it is a build defect.
		panic(fmt.Sprintf("taxonomy: embedded definition is invalid: %v", err))
	}
	return root
}

// ParseDefinition decodes a YAML or JSON definition tree
func ParseDefinition(data []byte) (*Node, error) {
	var root Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy definition: %w", err)
	}
	if strings.TrimSpace(root.Name) == "" {
		return nil, fmt.Errorf("taxonomy definition root must have a name")
	}
	return &root, nil
}

// LoadDefinition reads a definition tree from path. An empty path returns
// the built-in definition.
func LoadDefinition(path string) (*Node, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read taxonomy definition %s: %w", path, err)
	}
	return ParseDefinition(data)
}

// SaveDefinition writes the definition to path, as indented JSON when the
// extension is .json and as YAML otherwise.
func SaveDefinition(root *Node, path string) error {
	if root == nil {
		return fmt.Errorf("definition cannot be nil")
	}

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(root, "", "  ")
	} else {
		data, err = yaml.Marshal(root)
	}
	if err != nil {
		return fmt.Errorf("failed to encode taxonomy definition: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, DirPerm); err != nil {
			return fmt.Errorf("cannot create directory for %s: %w", path, err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

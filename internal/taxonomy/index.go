package taxonomy

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/a3tai/ctd-organizer/internal/failure"
)

// DirPerm is the permission used for every folder the organizer creates
const DirPerm = 0o750

// UncategorizedName is the folder that receives documents no strategy could place
const UncategorizedName = "Uncategorized"

// sectionIDPattern matches the leading dotted run of a display name such as
// "3.2.P.8" or "1.A". Single capital letters are accepted as components so
// lettered sections keep their full identifier.
var sectionIDPattern = regexp.MustCompile(`\d+(?:\.(?:\d+|[A-Z]\b))*`)

// Entry is an indexed category with its derived folder path
type Entry struct {
	ID          string
	Name        string
	Description string
	FolderPath  string
	Depth       int
	Leaf        bool
}

// Index maps category identifiers and display names to folder paths.
// It is immutable after Build and safe for concurrent reads.
type Index struct {
	base    string
	root    *Node
	entries []Entry
	keys    []string
	lookup  map[string]int
}

// Sanitize turns a display name into a folder name: each of <>:"/\|?* becomes
// '-' and runs of whitespace collapse to a single space.
func Sanitize(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '-'
		}
		return r
	}, name)
	return strings.Join(strings.Fields(cleaned), " ")
}

// SectionID returns the dotted section identifier at the start of a display
// name, or "" when the name carries none.
func SectionID(name string) string {
	return sectionIDPattern.FindString(name)
}

// Build walks the definition depth-first and indexes every named node under
// base. Nodes without a name are skipped together with their subtree and
// reported as warnings.
func Build(root *Node, base string) (*Index, []*failure.Error) {
	idx := &Index{
		base:   base,
		root:   root,
		lookup: make(map[string]int),
	}

	var warnings []*failure.Error
	var walk func(n *Node, parentPath string, depth int, trail string)
	walk = func(n *Node, parentPath string, depth int, trail string) {
		if n == nil {
			return
		}
		name := strings.TrimSpace(n.Name)
		if name == "" {
			msg := fmt.Sprintf("node without a name under %q skipped with %d descendant(s)", trail, n.Count()-1)
			warnings = append(warnings, failure.New(failure.KindMalformedTaxonomyNode, msg))
			return
		}

		folder := Sanitize(name)
		path := folder
		if parentPath != "" {
			path = filepath.Join(parentPath, folder)
		}

		id := SectionID(name)
		if id == "" {
			id = name
		}

		pos := len(idx.entries)
		idx.entries = append(idx.entries, Entry{
			ID:          id,
			Name:        name,
			Description: n.Description,
			FolderPath:  path,
			Depth:       depth,
			Leaf:        n.IsLeaf(),
		})

		idx.register(name, pos)
		if id != name {
			idx.register(id, pos)
		}

		for _, child := range n.Children {
			walk(child, path, depth+1, name)
		}
	}
	walk(root, base, 0, "<root>")

	return idx, warnings
}

// register adds key unless an earlier node already claimed it
func (idx *Index) register(key string, pos int) {
	if _, taken := idx.lookup[key]; taken {
		return
	}
	idx.lookup[key] = pos
	idx.keys = append(idx.keys, key)
}

// Lookup returns the folder path registered under an exact identifier or name
func (idx *Index) Lookup(key string) (string, bool) {
	pos, ok := idx.lookup[key]
	if !ok {
		return "", false
	}
	return idx.entries[pos].FolderPath, true
}

// Entry returns the category registered under key
func (idx *Index) Entry(key string) (Entry, bool) {
	pos, ok := idx.lookup[key]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[pos], true
}

// Keys returns every lookup key in registration order. For each node the
// display name comes first, then its section identifier.
func (idx *Index) Keys() []string {
	return append([]string(nil), idx.keys...)
}

// Entries returns the indexed categories in depth-first order
func (idx *Index) Entries() []Entry {
	return append([]Entry(nil), idx.entries...)
}

// Base returns the output root the folder paths are relative to
func (idx *Index) Base() string {
	return idx.base
}

// Root returns the definition the index was built from
func (idx *Index) Root() *Node {
	return idx.root
}

// UncategorizedPath returns the fallback folder under the output root
func (idx *Index) UncategorizedPath() string {
	return filepath.Join(idx.base, UncategorizedName)
}

// Len returns the number of indexed categories
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Stats summarises the indexed structure
type Stats struct {
	Modules     []string
	Folders     int
	Identifiers int
}

// Stats returns module names (first level under the root), the folder count
// and the number of lookup keys.
func (idx *Index) Stats() Stats {
	s := Stats{Folders: len(idx.entries), Identifiers: len(idx.keys)}
	for _, e := range idx.entries {
		if e.Depth == 1 {
			s.Modules = append(s.Modules, e.Name)
		}
	}
	return s
}

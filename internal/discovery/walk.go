// Package discovery finds the PDF documents to organize under a source tree.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/a3tai/ctd-organizer/internal/failure"
)

// modulePattern matches submission module folders such as m1 or M3
var modulePattern = regexp.MustCompile(`(?i)^m\d+$`)

// Document is a PDF found during the walk
type Document struct {
	Path    string    `json:"path"`
	RelPath string    `json:"rel_path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	// SourceModule is the m1..mN folder the document came from, if any
	SourceModule string `json:"source_module,omitempty"`
}

// Result holds the documents in walk order plus anything skipped
type Result struct {
	Root      string
	Documents []Document
	Warnings  []*failure.Error
}

// Modules returns the distinct source modules seen, sorted
func (r *Result) Modules() []string {
	seen := make(map[string]struct{})
	for _, d := range r.Documents {
		if d.SourceModule != "" {
			seen[d.SourceModule] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// TotalSize is the sum of all document sizes
func (r *Result) TotalSize() int64 {
	var n int64
	for _, d := range r.Documents {
		n += d.Size
	}
	return n
}

// IsPDF reports whether name has a .pdf extension in any case
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// SourceModule returns the first path segment of rel when it names a module
// folder (m1, m2, ...), otherwise "".
func SourceModule(rel string) string {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || !modulePattern.MatchString(parts[0]) {
		return ""
	}
	return parts[0]
}

// Walk lists every PDF under root in lexical order. Unreadable entries are
// skipped and reported as warnings; only a missing or unreadable root is an
// error. Symlinks pointing outside root are ignored.
func Walk(ctx context.Context, root string, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		return nil, failure.New(failure.KindDiscovery, "source directory cannot be empty")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, failure.Wrap(failure.KindDiscovery, err, "failed to resolve source directory").WithPath(root)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, failure.Wrap(failure.KindDiscovery, err, "source directory not accessible").WithPath(root)
	}
	if !info.IsDir() {
		return nil, failure.New(failure.KindDiscovery, "source path is not a directory").WithPath(root)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		realRoot = absRoot
	}

	res := &Result{Root: absRoot}
	warn := func(path string, err error, msg string) {
		w := failure.Wrap(failure.KindDiscovery, err, msg).WithPath(path)
		res.Warnings = append(res.Warnings, w)
		logger.Warn("skipping entry", "path", path, "error", err)
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == absRoot {
				return err
			}
			warn(path, err, "cannot read entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsPDF(d.Name()) {
			return nil
		}

		fi, err := os.Stat(path)
		if err != nil {
			warn(path, err, "cannot stat document")
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(path)
			if err != nil || !within(target, realRoot) {
				logger.Debug("ignoring symlink outside source directory", "path", path)
				return nil
			}
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			warn(path, err, "cannot compute relative path")
			return nil
		}

		res.Documents = append(res.Documents, Document{
			Path:         path,
			RelPath:      rel,
			Name:         d.Name(),
			Size:         fi.Size(),
			ModTime:      fi.ModTime(),
			SourceModule: SourceModule(rel),
		})
		return nil
	})
	if err != nil {
		return res, failure.Wrap(failure.KindDiscovery, err, "error walking source directory").WithPath(root)
	}

	logger.Debug("discovery complete",
		"root", absRoot,
		"documents", len(res.Documents),
		"skipped", len(res.Warnings))
	return res, nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// Describe renders a one-line summary of the result
func (r *Result) Describe() string {
	mods := r.Modules()
	if len(mods) == 0 {
		return fmt.Sprintf("%d PDF file(s)", len(r.Documents))
	}
	return fmt.Sprintf("%d PDF file(s) in modules %s", len(r.Documents), strings.Join(mods, ", "))
}

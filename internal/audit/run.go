// Package audit records where every document of a run was placed and why.
package audit

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Mapping is one document's outcome
type Mapping struct {
	Source       string    `json:"source"`
	Destination  string    `json:"destination,omitempty"`
	Category     string    `json:"category,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	Filename     string    `json:"filename"`
	SourceModule string    `json:"source_module,omitempty"`
	Bytes        int64     `json:"bytes,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Error        string    `json:"error,omitempty"`
}

// Failed reports whether the document could not be placed
func (m Mapping) Failed() bool {
	return m.Error != ""
}

// Run is the audit record of one batch
type Run struct {
	RunID          string    `json:"run_id"`
	Timestamp      time.Time `json:"timestamp"`
	SourceFolder   string    `json:"source_folder"`
	CTDFolder      string    `json:"ctd_folder"`
	DryRun         bool      `json:"dry_run,omitempty"`
	TotalDocuments int       `json:"total_documents"`
	Processed      int       `json:"processed"`
	Failed         int       `json:"failed"`
	Mappings       []Mapping `json:"mappings"`

	mu sync.Mutex
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a new lexically sortable run identifier
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// NewRun starts an audit record for a batch over source into ctdFolder
func NewRun(source, ctdFolder string, dryRun bool) *Run {
	return &Run{
		RunID:        NewRunID(),
		Timestamp:    time.Now().UTC(),
		SourceFolder: source,
		CTDFolder:    ctdFolder,
		DryRun:       dryRun,
		Mappings:     []Mapping{},
	}
}

// Add appends a mapping and updates the counters. Safe for concurrent use.
func (r *Run) Add(m Mapping) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Mappings = append(r.Mappings, m)
	if m.Failed() {
		r.Failed++
	} else {
		r.Processed++
	}
}

// SetTotal records how many documents were discovered
func (r *Run) SetTotal(n int) {
	r.mu.Lock()
	r.TotalDocuments = n
	r.mu.Unlock()
}

// Snapshot returns a copy of the mappings
func (r *Run) Snapshot() []Mapping {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Mapping, len(r.Mappings))
	copy(out, r.Mappings)
	return out
}

// FolderCount is the number of documents placed into one folder
type FolderCount struct {
	Folder string `json:"folder"`
	Count  int    `json:"count"`
}

// Distribution counts placed documents per destination folder, busiest
// first. Folders with equal counts are ordered by name. n <= 0 returns all.
func (r *Run) Distribution(n int) []FolderCount {
	counts := make(map[string]int)
	for _, m := range r.Snapshot() {
		if m.Failed() || m.Destination == "" {
			continue
		}
		counts[filepath.Dir(m.Destination)]++
	}
	out := make([]FolderCount, 0, len(counts))
	for f, c := range counts {
		out = append(out, FolderCount{Folder: f, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Folder < out[j].Folder
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// WriteFile saves the run as indented JSON. The file is written to a
// temporary sibling first and renamed into place.
func (r *Run) WriteFile(path string) error {
	r.mu.Lock()
	data, err := json.MarshalIndent(r, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode audit log: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".audit-*.json")
	if err != nil {
		return fmt.Errorf("failed to create audit file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write audit file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write audit file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save audit file: %w", err)
	}
	return nil
}

// ReadFile loads a run previously saved with WriteFile
func ReadFile(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit file: %w", err)
	}
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse audit file: %w", err)
	}
	return &r, nil
}

package failure

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Kind classifies a failure by the pipeline stage that raised it
type Kind int

const (
	KindUnknown Kind = iota
	KindExtraction
	KindMalformedTaxonomyNode
	KindDestinationUnresolvable
	KindPlacementIO
	KindDiscovery
	KindConfiguration
)

// Severity indicates how a failure affects the batch
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
)

// String returns a string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindExtraction:
		return "EXTRACTION_FAILURE"
	case KindMalformedTaxonomyNode:
		return "MALFORMED_TAXONOMY_NODE"
	case KindDestinationUnresolvable:
		return "DESTINATION_UNRESOLVABLE"
	case KindPlacementIO:
		return "PLACEMENT_IO_FAILURE"
	case KindDiscovery:
		return "DISCOVERY_FAILURE"
	case KindConfiguration:
		return "CONFIGURATION_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Stage returns the pipeline stage name reported to the user
func (k Kind) Stage() string {
	switch k {
	case KindExtraction:
		return "extract"
	case KindMalformedTaxonomyNode:
		return "taxonomy"
	case KindDestinationUnresolvable:
		return "resolve"
	case KindPlacementIO:
		return "place"
	case KindDiscovery:
		return "discover"
	case KindConfiguration:
		return "config"
	default:
		return "unknown"
	}
}

// Severity returns the severity level for a given kind.
// Extraction failures degrade to empty text and taxonomy/discovery problems
// only drop the offending item, so they never count against the batch.
func (k Kind) Severity() Severity {
	switch k {
	case KindExtraction, KindMalformedTaxonomyNode, KindDiscovery:
		return SeverityWarning
	case KindConfiguration:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// Error is a failure with the context needed to report it per document
type Error struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Path      string    `json:"path,omitempty"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Path, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Stage returns the stage that produced the failure
func (e *Error) Stage() string {
	return e.Kind.Stage()
}

// New creates a new failure of the given kind
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps a standard error as a failure of the given kind
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithPath adds file path information to an existing failure
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// Is reports whether err is a failure of the given kind
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// Collection gathers failures raised during a batch. It is safe for
// concurrent use.
type Collection struct {
	mu       sync.Mutex
	errors   []*Error
	warnings []*Error
}

// NewCollection creates a new empty collection
func NewCollection() *Collection {
	return &Collection{
		errors:   make([]*Error, 0),
		warnings: make([]*Error, 0),
	}
}

// Add files the failure under errors or warnings based on its severity
func (c *Collection) Add(err *Error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err.Kind.Severity() == SeverityWarning {
		c.warnings = append(c.warnings, err)
	} else {
		c.errors = append(c.errors, err)
	}
}

// Errors returns a copy of the recorded errors
func (c *Collection) Errors() []*Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Error(nil), c.errors...)
}

// Warnings returns a copy of the recorded warnings
func (c *Collection) Warnings() []*Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Error(nil), c.warnings...)
}

// Count returns the total number of errors and warnings
func (c *Collection) Count() (errs, warnings int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors), len(c.warnings)
}

// Summary returns a text summary of all errors and warnings
func (c *Collection) Summary() string {
	errorCount, warningCount := c.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}
	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}

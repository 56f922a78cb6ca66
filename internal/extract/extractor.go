package extract

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/ctd-organizer/internal/failure"
)

const (
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultTimeout     = 60 * time.Second
	DefaultCacheSize   = 256

	maxTextSize = 10 * 1024 * 1024 // 10MB text limit
)

// ErrTimeout is reported when a document takes longer than the configured timeout
var ErrTimeout = errors.New("text extraction timed out")

// Options bounds the work done per document
type Options struct {
	MaxFileSize int64
	// MaxPages limits how many pages are read; zero reads all pages
	MaxPages  int
	Timeout   time.Duration
	CacheSize int
	Logger    *slog.Logger
}

// Extraction is the outcome of reading one document. Text is empty when
// Failure is set; extraction never aborts the caller.
type Extraction struct {
	Text     string
	Pages    int
	Size     int64
	Hash     string
	Cached   bool
	Duration time.Duration
	Failure  *failure.Error
}

// Extractor pulls plain text out of PDF files. Results are cached by content
// hash for the lifetime of the Extractor.
type Extractor struct {
	opts  Options
	cache *lru.Cache[string, cachedText]
	log   *slog.Logger
}

type cachedText struct {
	text  string
	pages int
}

// New creates an extractor with the given limits
func New(opts Options) (*Extractor, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.MaxPages < 0 {
		opts.MaxPages = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.New[string, cachedText](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create text cache: %w", err)
	}

	return &Extractor{opts: opts, cache: cache, log: logger}, nil
}

// Extract returns the text of the PDF at path
func (e *Extractor) Extract(ctx context.Context, path string) Extraction {
	start := time.Now()
	result := e.extract(ctx, path)
	result.Duration = time.Since(start)

	if result.Failure != nil {
		e.log.Warn("text extraction failed",
			"path", path,
			"error", result.Failure.Error(),
			"duration", result.Duration)
	} else {
		e.log.Debug("text extracted",
			"path", path,
			"pages", result.Pages,
			"chars", len(result.Text),
			"cached", result.Cached,
			"duration", result.Duration)
	}
	return result
}

func (e *Extractor) extract(ctx context.Context, path string) Extraction {
	info, err := os.Stat(path)
	if err != nil {
		return Extraction{Failure: failure.Wrap(failure.KindExtraction, err, "cannot access file").WithPath(path)}
	}
	if info.IsDir() {
		return Extraction{Failure: failure.New(failure.KindExtraction, "path is a directory, not a file").WithPath(path)}
	}
	if info.Size() > e.opts.MaxFileSize {
		msg := fmt.Sprintf("file too large: %d bytes (max: %d bytes)", info.Size(), e.opts.MaxFileSize)
		return Extraction{Size: info.Size(), Failure: failure.New(failure.KindExtraction, msg).WithPath(path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Extraction{Size: info.Size(), Failure: failure.Wrap(failure.KindExtraction, err, "cannot read file").WithPath(path)}
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	out := Extraction{Size: int64(len(data)), Hash: hash}

	if hit, ok := e.cache.Get(hash); ok {
		out.Text, out.Pages, out.Cached = hit.text, hit.pages, true
		if hit.text == "" {
			out.Failure = failure.New(failure.KindExtraction, "no text content could be extracted from PDF").WithPath(path)
		}
		return out
	}

	text, pages, err := e.parseWithTimeout(ctx, data)
	out.Pages = pages
	if err != nil {
		if !errors.Is(err, ErrTimeout) && !errors.Is(err, context.Canceled) {
			if diag := probe(data); diag != "" {
				err = fmt.Errorf("%w (%s)", err, diag)
			}
		}
		out.Failure = failure.Wrap(failure.KindExtraction, err, "failed to extract text").WithPath(path)
		return out
	}

	text = normalizeText(text)
	e.cache.Add(hash, cachedText{text: text, pages: pages})

	if strings.TrimSpace(text) == "" {
		out.Failure = failure.New(failure.KindExtraction, "no text content could be extracted from PDF").WithPath(path)
		return out
	}
	out.Text = text
	return out
}

type parseResult struct {
	text  string
	pages int
	err   error
}

// parseWithTimeout runs the parser in its own goroutine so a pathological
// document cannot hold the caller past the timeout. The goroutine finishes
// on its own; its result is dropped.
func (e *Extractor) parseWithTimeout(ctx context.Context, data []byte) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", 0, ErrTimeout
		}
		return "", 0, err
	}

	done := make(chan parseResult, 1)
	go func() {
		text, pages, err := parse(data, e.opts.MaxPages)
		done <- parseResult{text: text, pages: pages, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.pages, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", 0, ErrTimeout
		}
		return "", 0, ctx.Err()
	}
}

// parse extracts the plain text of up to maxPages pages
func parse(data []byte, maxPages int) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}

	pages = reader.NumPage()
	limit := pages
	if maxPages > 0 && maxPages < limit {
		limit = maxPages
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= limit; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			// Continue with other pages even if one fails
			continue
		}

		if builder.Len()+len(content) > maxTextSize {
			if remaining := maxTextSize - builder.Len(); remaining > 0 {
				builder.WriteString(truncate(content, remaining))
			}
			break
		}
		builder.WriteString(content)
		builder.WriteByte('\n')
	}

	return builder.String(), pages, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if n >= len(s) {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// normalizeText folds compatibility characters such as ligatures and
// non-breaking spaces so keyword phrases match.
func normalizeText(s string) string {
	return norm.NFKC.String(s)
}

// CacheLen returns the number of cached documents
func (e *Extractor) CacheLen() int {
	return e.cache.Len()
}

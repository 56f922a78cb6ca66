// Package organizer runs the classify-and-place pipeline over a batch of
// discovered documents.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/schollz/progressbar/v2"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/ctd-organizer/internal/audit"
	"github.com/a3tai/ctd-organizer/internal/classifier"
	"github.com/a3tai/ctd-organizer/internal/discovery"
	"github.com/a3tai/ctd-organizer/internal/extract"
	"github.com/a3tai/ctd-organizer/internal/failure"
	"github.com/a3tai/ctd-organizer/internal/metrics"
	"github.com/a3tai/ctd-organizer/internal/placement"
)

// Deps are the collaborators a batch needs. Metrics and Logger are optional.
type Deps struct {
	Classifier *classifier.Classifier
	Extractor  *extract.Extractor
	Placer     *placement.Placer
	Metrics    *metrics.BatchMetrics
	Logger     *slog.Logger
}

// Options tune a batch
type Options struct {
	// Workers bounds concurrent extraction and classification
	Workers int
	// Progress, when set, receives a progress bar
	Progress io.Writer
}

// Outcome is everything known about one document after it went through the
// pipeline
type Outcome struct {
	Document   discovery.Document
	Extraction extract.Extraction
	Decision   classifier.Decision
	Placement  placement.Result
	// Err is set when the document could not be placed
	Err *failure.Error
}

// Organizer classifies documents and copies them into the taxonomy tree
type Organizer struct {
	classifier *classifier.Classifier
	extractor  *extract.Extractor
	placer     *placement.Placer
	metrics    *metrics.BatchMetrics
	log        *slog.Logger
	opts       Options
}

// New wires an organizer from its collaborators
func New(deps Deps, opts Options) (*Organizer, error) {
	switch {
	case deps.Classifier == nil:
		return nil, errors.New("classifier is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Placer == nil:
		return nil, errors.New("placer is required")
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Organizer{
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		placer:     deps.Placer,
		metrics:    deps.Metrics,
		log:        logger,
		opts:       opts,
	}, nil
}

// Classify extracts and classifies a single file without placing it
func (o *Organizer) Classify(ctx context.Context, path string) Outcome {
	doc := discovery.Document{Path: path, Name: filepath.Base(path)}
	return o.classify(ctx, doc)
}

func (o *Organizer) classify(ctx context.Context, doc discovery.Document) Outcome {
	ex := o.extractor.Extract(ctx, doc.Path)
	if o.metrics != nil {
		o.metrics.ObserveExtraction(ex.Duration, ex.Failure == nil)
	}

	// Failed extraction leaves Text empty, so only filename evidence counts.
	decision := o.classifier.Classify(ex.Text, doc.Name)
	if o.metrics != nil {
		o.metrics.ObserveResolution(string(decision.Resolution.Strategy))
	}

	o.log.Debug("document classified",
		"path", doc.Path,
		"strategy", decision.Resolution.Strategy,
		"category", decision.Resolution.Category,
		"reason", decision.Resolution.Reason)

	return Outcome{Document: doc, Extraction: ex, Decision: decision}
}

// Run organizes docs and records every outcome in run. Classification runs
// on a bounded worker pool; placement then happens one document at a time
// in discovery order so _N suffixes are the same on every run.
//
// Cancelling ctx stops new work. Documents already classified are placed;
// those whose extraction was cut short are left for the next run.
func (o *Organizer) Run(ctx context.Context, docs []discovery.Document, run *audit.Run) (*Summary, error) {
	if run == nil {
		return nil, errors.New("audit run is required")
	}
	start := time.Now()
	run.SetTotal(len(docs))

	summary := newSummary(len(docs), o.placer.DryRun())
	bar := o.newBar(len(docs))

	outcomes := make([]*Outcome, len(docs))

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out := o.classify(ctx, doc)
			outcomes[i] = &out
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Documents classified before a cancellation are still placed.
	placeCtx := context.WithoutCancel(ctx)
	for i, out := range outcomes {
		if out == nil || interrupted(out) {
			continue
		}
		o.place(placeCtx, out)
		summary.record(out)
		run.Add(mappingFor(out))
		outcomes[i] = nil
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(o.opts.Progress)
	}

	summary.Distribution = run.Distribution(10)
	summary.Duration = time.Since(start)
	summary.Skipped = summary.Total - summary.Processed - summary.Failed
	if o.metrics != nil {
		o.metrics.Finish(time.Now())
	}

	o.log.Info("batch finished",
		"run_id", run.RunID,
		"total", summary.Total,
		"processed", summary.Processed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("batch interrupted: %w", err)
	}
	return summary, nil
}

func (o *Organizer) newBar(total int) *progressbar.ProgressBar {
	if o.opts.Progress == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(o.opts.Progress),
		progressbar.OptionSetDescription("Classifying"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

func (o *Organizer) place(ctx context.Context, out *Outcome) {
	res, err := o.placer.Place(ctx, out.Document.Path, out.Decision.Resolution.FolderPath)
	if o.metrics != nil {
		o.metrics.ObservePlacement(res.Bytes, o.placer.DryRun(), err)
	}
	out.Placement = res
	if err != nil {
		var fe *failure.Error
		if !errors.As(err, &fe) {
			fe = failure.Wrap(failure.KindPlacementIO, err, "placement failed").WithPath(out.Document.Path)
		}
		out.Err = fe
		o.log.Error("placement failed", "path", out.Document.Path, "error", err)
		return
	}
	o.log.Info("document organized",
		"file", out.Document.Name,
		"destination", res.Destination,
		"reason", out.Decision.Resolution.Reason)
}

// interrupted reports whether extraction stopped because the batch was cancelled
func interrupted(out *Outcome) bool {
	return out.Extraction.Failure != nil && errors.Is(out.Extraction.Failure, context.Canceled)
}

func mappingFor(out *Outcome) audit.Mapping {
	m := audit.Mapping{
		Source:       out.Document.Path,
		Destination:  out.Placement.Destination,
		Category:     out.Decision.Resolution.Category,
		Reason:       out.Decision.Resolution.Reason,
		Strategy:     string(out.Decision.Resolution.Strategy),
		Filename:     out.Document.Name,
		SourceModule: out.Document.SourceModule,
		Bytes:        out.Placement.Bytes,
	}
	if out.Err != nil {
		m.Error = out.Err.Error()
	}
	return m
}

package organizer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/a3tai/ctd-organizer/internal/audit"
	"github.com/a3tai/ctd-organizer/internal/classifier"
	"github.com/a3tai/ctd-organizer/internal/failure"
)

// Summary is the end-of-run report
type Summary struct {
	Total     int
	Processed int
	Failed    int
	// Skipped counts documents never reached because the run was cancelled
	Skipped     int
	DryRun      bool
	CopiedBytes int64
	Strategies  map[classifier.Strategy]int
	// Distribution holds the busiest destination folders
	Distribution []audit.FolderCount
	Failures     *failure.Collection
	Duration     time.Duration
}

func newSummary(total int, dryRun bool) *Summary {
	return &Summary{
		Total:      total,
		DryRun:     dryRun,
		Strategies: make(map[classifier.Strategy]int),
		Failures:   failure.NewCollection(),
	}
}

func (s *Summary) record(out *Outcome) {
	if out.Extraction.Failure != nil {
		s.Failures.Add(out.Extraction.Failure)
	}
	if out.Err != nil {
		s.Failed++
		s.Failures.Add(out.Err)
		return
	}
	s.Processed++
	s.CopiedBytes += out.Placement.Bytes
	s.Strategies[out.Decision.Resolution.Strategy]++
}

// Write prints the human readable report
func (s *Summary) Write(w io.Writer, outputRoot string) {
	verb := "organized"
	if s.DryRun {
		verb = "planned"
	}

	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 60))
	if s.DryRun {
		fmt.Fprintln(w, "DRY RUN COMPLETE (no files were copied)")
	} else {
		fmt.Fprintln(w, "ORGANIZATION COMPLETE")
	}
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 60))

	fmt.Fprintf(w, "Successfully %s %d out of %d files (%s in %s)\n",
		verb, s.Processed, s.Total, humanize.Bytes(uint64(s.CopiedBytes)), s.Duration.Round(time.Millisecond))
	if s.Failed > 0 {
		fmt.Fprintf(w, "Failed: %d\n", s.Failed)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(w, "Not processed (interrupted): %d\n", s.Skipped)
	}

	if len(s.Strategies) > 0 {
		fmt.Fprintln(w, "\nBy strategy:")
		for _, st := range classifier.AllStrategies {
			if n := s.Strategies[st]; n > 0 {
				fmt.Fprintf(w, "  %-16s %s\n", st, humanize.Comma(int64(n)))
			}
		}
	}

	if len(s.Distribution) > 0 {
		fmt.Fprintln(w, "\nTop destinations:")
		for _, fc := range s.Distribution {
			folder := fc.Folder
			if rel, err := filepath.Rel(outputRoot, fc.Folder); err == nil {
				folder = rel
			}
			fmt.Fprintf(w, "  %4d  %s\n", fc.Count, folder)
		}
	}

	if errs := s.Failures.Errors(); len(errs) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, e := range errs {
			fmt.Fprintf(w, "  [%s] %s\n", e.Stage(), e.Error())
		}
	}
	if warns := s.Failures.Warnings(); len(warns) > 0 {
		fmt.Fprintf(w, "\n%d document(s) had no extractable text and were classified by filename only\n", len(warns))
	}

	fmt.Fprintf(w, "\n%s\n", s.Failures.Summary())
	fmt.Fprintf(w, "All files are in: %s\n", outputRoot)
}

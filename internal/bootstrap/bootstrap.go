// Package bootstrap assembles the organizer's collaborators from a Config.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/a3tai/ctd-organizer/internal/audit"
	"github.com/a3tai/ctd-organizer/internal/classifier"
	"github.com/a3tai/ctd-organizer/internal/config"
	"github.com/a3tai/ctd-organizer/internal/discovery"
	"github.com/a3tai/ctd-organizer/internal/extract"
	"github.com/a3tai/ctd-organizer/internal/failure"
	"github.com/a3tai/ctd-organizer/internal/metrics"
	"github.com/a3tai/ctd-organizer/internal/organizer"
	"github.com/a3tai/ctd-organizer/internal/placement"
	"github.com/a3tai/ctd-organizer/internal/taxonomy"
)

// App holds the long-lived pieces shared by every command and MCP tool
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Index      *taxonomy.Index
	Classifier *classifier.Classifier
	Extractor  *extract.Extractor
	Metrics    *metrics.BatchMetrics
	Ledger     *audit.Ledger

	// Warnings collected while building the taxonomy index
	Warnings []*failure.Error
}

// New loads the taxonomy and rule tables named in cfg and prepares the
// extractor. The ledger is opened only when cfg.AuditDB is set.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	def, err := taxonomy.LoadDefinition(cfg.TaxonomyFile)
	if err != nil {
		return nil, failure.Wrap(failure.KindConfiguration, err, "cannot load taxonomy").WithPath(cfg.TaxonomyFile)
	}
	index, warnings := taxonomy.Build(def, cfg.OutputDir)
	for _, w := range warnings {
		logger.Warn("taxonomy node skipped", "error", w.Error())
	}

	clsCfg := classifier.DefaultConfig()
	if cfg.RulesFile != "" {
		set, err := classifier.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, failure.Wrap(failure.KindConfiguration, err, "cannot load rules").WithPath(cfg.RulesFile)
		}
		clsCfg.Rules = set.Keywords
		clsCfg.FilenameRules = set.Filename
	}
	cls, err := classifier.New(index, clsCfg)
	if err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}

	ext, err := extract.New(extract.Options{
		MaxFileSize: cfg.MaxFileSize,
		MaxPages:    cfg.MaxPages,
		Timeout:     cfg.ExtractTimeout,
		CacheSize:   cfg.CacheSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Index:      index,
		Classifier: cls,
		Extractor:  ext,
		Metrics:    metrics.NewBatchMetrics(),
		Warnings:   warnings,
	}

	if cfg.AuditDB != "" {
		ledger, err := audit.OpenLedger(ctx, cfg.AuditDB)
		if err != nil {
			return nil, fmt.Errorf("open audit ledger: %w", err)
		}
		app.Ledger = ledger
	}

	logger.Debug("organizer ready",
		"taxonomy_folders", index.Len(),
		"identifiers", len(index.Keys()),
		"rules", len(cls.Rules()))
	return app, nil
}

// Close releases the ledger
func (a *App) Close() error {
	if a.Ledger != nil {
		return a.Ledger.Close()
	}
	return nil
}

// Organizer returns a batch organizer writing into the configured output root
func (a *App) Organizer(dryRun bool, progress io.Writer) (*organizer.Organizer, error) {
	placer, err := placement.New(a.Config.OutputDir, placement.Options{DryRun: dryRun, Logger: a.Logger})
	if err != nil {
		return nil, err
	}
	return organizer.New(organizer.Deps{
		Classifier: a.Classifier,
		Extractor:  a.Extractor,
		Placer:     placer,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	}, organizer.Options{Workers: a.Config.Workers, Progress: progress})
}

// DefinitionFileName is the definition init writes beside the output root
const DefinitionFileName = "ctd_structure.yaml"

// DefinitionPath returns the definition file in use, or where init writes
// the built-in one.
func (a *App) DefinitionPath() string {
	if a.Config.TaxonomyFile != "" {
		return a.Config.TaxonomyFile
	}
	return filepath.Join(filepath.Dir(filepath.Clean(a.Config.OutputDir)), DefinitionFileName)
}

// TreeExists reports whether the output root has been created
func (a *App) TreeExists() bool {
	info, err := os.Stat(a.Config.OutputDir)
	return err == nil && info.IsDir()
}

// InitResult describes what Init created
type InitResult struct {
	Folders        int
	DefinitionFile string
	// Saved is false when an existing definition file was used as is
	Saved bool
}

// Init creates the folder tree. With reset the existing output root is
// removed first. The built-in definition is saved next to the output root;
// a custom taxonomy file is left untouched.
func (a *App) Init(ctx context.Context, reset bool) (InitResult, error) {
	res := InitResult{DefinitionFile: a.DefinitionPath()}

	if reset && a.TreeExists() {
		if err := os.RemoveAll(a.Config.OutputDir); err != nil {
			return res, fmt.Errorf("cannot remove %s: %w", a.Config.OutputDir, err)
		}
		a.Logger.Info("existing tree removed", "path", a.Config.OutputDir)
	}

	if a.Config.TaxonomyFile == "" {
		if err := taxonomy.SaveDefinition(a.Index.Root(), res.DefinitionFile); err != nil {
			return res, err
		}
		res.Saved = true
	}

	n, err := taxonomy.Materialize(ctx, a.Index)
	res.Folders = n
	if err != nil {
		return res, err
	}
	a.Logger.Info("taxonomy tree created", "path", a.Config.OutputDir, "folders", n)
	return res, nil
}

// RunOptions select how one batch behaves
type RunOptions struct {
	DryRun   bool
	Progress io.Writer
	// Discovery reuses an earlier walk of the source folder, so the batch
	// processes exactly the documents a caller already showed to the user.
	// Nil walks the source folder again.
	Discovery *discovery.Result
}

// Report is everything a finished (or interrupted) batch produced
type Report struct {
	Discovery *discovery.Result
	Run       *audit.Run
	Summary   *organizer.Summary
	// AuditFile is where the JSON audit log was written, empty when disabled
	AuditFile string
}

// Organize walks the source folder, organizes every PDF found and records
// the run. The audit log, ledger and metrics are written even when ctx is
// cancelled part way through; the cancellation error is returned with the
// report.
func (a *App) Organize(ctx context.Context, opts RunOptions) (*Report, error) {
	if !a.TreeExists() {
		return nil, failure.New(failure.KindConfiguration, "CTD structure not found; run init first").WithPath(a.Config.OutputDir)
	}
	found := opts.Discovery
	if found == nil {
		var err error
		if found, err = discovery.Walk(ctx, a.Config.SourceDir, a.Logger); err != nil {
			return nil, err
		}
	}
	a.Logger.Info("documents discovered", "source", a.Config.SourceDir, "found", found.Describe())

	org, err := a.Organizer(opts.DryRun, opts.Progress)
	if err != nil {
		return nil, err
	}

	run := audit.NewRun(a.Config.SourceDir, a.Config.OutputDir, opts.DryRun)
	summary, runErr := org.Run(ctx, found.Documents, run)
	if summary == nil {
		return nil, runErr
	}
	for _, w := range found.Warnings {
		summary.Failures.Add(w)
	}

	report := &Report{Discovery: found, Run: run, Summary: summary}
	if err := a.record(report); err != nil {
		return report, err
	}
	return report, runErr
}

// record persists a finished run. It runs detached from the batch context so
// an interrupted batch still leaves its audit trail.
func (a *App) record(report *Report) error {
	ctx := context.Background()

	if path := a.Config.AuditFile; path != "" {
		if err := report.Run.WriteFile(path); err != nil {
			return fmt.Errorf("write audit log: %w", err)
		}
		report.AuditFile = path
		a.Logger.Info("audit log written", "path", path, "mappings", len(report.Run.Mappings))
	}

	if a.Ledger != nil {
		if err := a.Ledger.Record(ctx, report.Run); err != nil {
			return fmt.Errorf("record run in ledger: %w", err)
		}
	}

	if err := a.Metrics.WriteTextfile(a.Config.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

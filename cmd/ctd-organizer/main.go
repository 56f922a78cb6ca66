package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/a3tai/ctd-organizer/internal/bootstrap"
	"github.com/a3tai/ctd-organizer/internal/config"
	"github.com/a3tai/ctd-organizer/internal/discovery"
	"github.com/a3tai/ctd-organizer/internal/logging"
	ctdmcp "github.com/a3tai/ctd-organizer/internal/mcp"
	"github.com/a3tai/ctd-organizer/internal/taxonomy"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ctd-organizer",
		Short: "File regulatory PDFs into the CTD folder structure",
		Long: `ctd-organizer classifies regulatory PDF documents and copies each one into
the matching folder of the Common Technical Document (CTD) structure.

Typical use:
  ctd-organizer init                 create the CTD folder tree
  ctd-organizer organize --dry-run   preview where every PDF would go
  ctd-organizer organize             copy the PDFs into the tree`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(versionString())

	config.RegisterFlags(root.PersistentFlags(), config.DefaultConfig())

	root.AddCommand(initCmd())
	root.AddCommand(organizeCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(taxonomyCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(serveCmd())
	return root
}

// versionString describes the build
func versionString() string {
	return fmt.Sprintf("CTD Organizer\nVersion: %s\nBuild Time: %s\nGit Commit: %s\nBuilt with: %s\n",
		version, buildTime, gitCommit, runtime.Version())
}

// setup loads the configuration and builds the application. The returned
// cleanup closes the ledger and the log file.
func setup(cmd *cobra.Command) (*bootstrap.App, func(), error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if version != "dev" {
		cfg.Version = version
	}

	logger, logCloser, err := logging.New(cfg.ServerName, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("configuration loaded", "config", cfg.String())

	app, err := bootstrap.New(cmd.Context(), cfg, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close ledger", "error", err)
		}
		_ = logCloser.Close()
	}
	return app, cleanup, nil
}

// confirm asks a yes/no question. With assumeYes the question is printed
// with the answer and true is returned.
func confirm(in *bufio.Reader, out io.Writer, question string, assumeYes bool) bool {
	if assumeYes {
		fmt.Fprintf(out, "%s (yes/no): yes\n", question)
		return true
	}
	fmt.Fprintf(out, "%s (yes/no): ", question)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func banner(out io.Writer, title string) {
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, strings.Repeat("=", 60))
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the CTD folder structure",
		Long: `Create every folder of the CTD taxonomy under the output directory and save
the taxonomy definition next to it.

An existing tree is only deleted after confirmation, or with --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")

			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			in, out := bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout()
			cfg := app.Config
			banner(out, "CTD STRUCTURE BUILDER")

			if !confirm(in, out, "\nThis will create the complete CTD folder structure.\nDo you want to proceed?", cfg.AssumeYes) {
				fmt.Fprintln(out, "Operation cancelled.")
				return nil
			}

			reset := force
			if app.TreeExists() && !force {
				fmt.Fprintf(out, "\n%s already exists.\n", cfg.OutputDir)
				reset = confirm(in, out, "Delete and recreate?", cfg.AssumeYes)
				if !reset {
					fmt.Fprintln(out, "Keeping existing folders; missing ones will be added.")
				}
			}

			res, err := app.Init(cmd.Context(), reset)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nCTD structure creation complete!\n")
			fmt.Fprintf(out, "%d folders created in %s\n", res.Folders, cfg.OutputDir)
			if res.Saved {
				fmt.Fprintf(out, "CTD definition saved to %s\n", res.DefinitionFile)
			}
			fmt.Fprintln(out, "\nNEXT STEPS:")
			fmt.Fprintf(out, "1. Add your PDF documents to '%s'\n", cfg.SourceDir)
			fmt.Fprintln(out, "2. Run: ctd-organizer organize --dry-run")
			fmt.Fprintln(out, "3. Run: ctd-organizer organize")
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Delete an existing tree without asking")
	return cmd
}

func organizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Classify every PDF in the source folder and copy it into the CTD tree",
		Long: `Walk the source folder, classify every PDF and copy it into its CTD folder.
Existing files are never overwritten; name clashes get a _1, _2... suffix.

Every decision is written to the audit log. With --dry-run nothing is copied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			progress, _ := cmd.Flags().GetBool("progress")

			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			in, out := bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout()
			cfg := app.Config
			cfg.DryRun, cfg.Progress = dryRun, progress
			banner(out, "CTD DOCUMENT ORGANIZER")

			if !app.TreeExists() {
				return fmt.Errorf("CTD structure not found: %s (run 'ctd-organizer init' first)", cfg.OutputDir)
			}

			if _, err := os.Stat(cfg.SourceDir); errors.Is(err, os.ErrNotExist) {
				if err := os.MkdirAll(cfg.SourceDir, taxonomy.DirPerm); err != nil {
					return fmt.Errorf("cannot create source folder: %w", err)
				}
				fmt.Fprintf(out, "Source folder not found; created %s\n", cfg.SourceDir)
				fmt.Fprintln(out, "Add your PDF documents there and run this command again.")
				return nil
			}

			found, err := discovery.Walk(cmd.Context(), cfg.SourceDir, app.Logger)
			if err != nil {
				return err
			}
			if len(found.Documents) == 0 {
				fmt.Fprintf(out, "No PDF files found in: %s\n", cfg.SourceDir)
				return nil
			}

			fmt.Fprintf(out, "\nReady to organize %s (%s)\n", found.Describe(), humanize.Bytes(uint64(found.TotalSize())))
			fmt.Fprintf(out, "CTD structure: %s\n", cfg.OutputDir)
			if dryRun {
				fmt.Fprintln(out, "Dry run: no files will be copied")
			}
			if !confirm(in, out, "\nStart organizing documents?", cfg.AssumeYes) {
				fmt.Fprintln(out, "Operation cancelled.")
				return nil
			}

			opts := bootstrap.RunOptions{DryRun: dryRun, Discovery: found}
			if progress {
				opts.Progress = cmd.ErrOrStderr()
			}
			report, runErr := app.Organize(cmd.Context(), opts)
			if report == nil {
				return runErr
			}

			fmt.Fprintln(out)
			report.Summary.Write(out, cfg.OutputDir)
			if report.AuditFile != "" {
				fmt.Fprintf(out, "Audit log: %s\n", report.AuditFile)
			}
			return runErr
		},
	}
	cmd.Flags().Bool("dry-run", false, "Plan destinations without copying any file")
	cmd.Flags().Bool("progress", false, "Show a progress bar on stderr")
	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify FILE...",
		Short: "Show where PDF files would be filed, without copying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			preview, err := app.Organizer(true, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, path := range args {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				o := preview.Classify(cmd.Context(), path)
				res := o.Decision.Resolution

				fmt.Fprintf(out, "%s\n", path)
				fmt.Fprintf(out, "  destination: %s\n", relTo(app.Config.OutputDir, res.FolderPath))
				fmt.Fprintf(out, "  strategy:    %s\n", res.Strategy)
				fmt.Fprintf(out, "  reason:      %s\n", res.Reason)
				if o.Extraction.Failure != nil {
					fmt.Fprintf(out, "  text:        none (%s)\n", o.Extraction.Failure.Error())
				} else {
					fmt.Fprintf(out, "  text:        %d page(s), %s characters\n", o.Extraction.Pages, humanize.Comma(int64(len(o.Extraction.Text))))
				}
				if sections := o.Decision.Evidence.Sections(); len(sections) > 0 {
					fmt.Fprintf(out, "  sections:    %s\n", strings.Join(sections, ", "))
				}
				for _, sc := range o.Decision.Scores.TopN(3) {
					fmt.Fprintf(out, "  score %4d   %s\n", sc.Score, sc.Category)
				}
			}
			return nil
		},
	}
}

func taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Print the CTD taxonomy as a folder tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			depth, _ := cmd.Flags().GetInt("depth")

			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if err := taxonomy.WriteTree(out, app.Index.Root(), depth); err != nil {
				return err
			}
			stats := app.Index.Stats()
			fmt.Fprintf(out, "\n%d folders, %d identifiers, %d modules\n", stats.Folders, stats.Identifiers, len(stats.Modules))
			return nil
		},
	}
	cmd.Flags().Int("depth", 3, "Levels to print (0 prints the whole tree)")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [FILE]",
		Short: "List recorded runs, or every placement of one source file",
		Long: `Read the audit ledger configured with --audit-db. Without arguments the most
recent runs are listed; with a source file path its placements across runs are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if app.Ledger == nil {
				return errors.New("no audit ledger configured (use --audit-db)")
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				mappings, err := app.Ledger.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(mappings) == 0 {
					fmt.Fprintf(out, "No recorded runs include %s\n", args[0])
					return nil
				}
				for _, m := range mappings {
					dest := relTo(app.Config.OutputDir, m.Destination)
					if m.Failed() {
						dest = "FAILED: " + m.Error
					}
					fmt.Fprintf(out, "%s  %-16s %s\n", m.Timestamp.Local().Format("2006-01-02 15:04:05"), m.Strategy, dest)
				}
				return nil
			}

			runs, err := app.Ledger.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}
			for _, r := range runs {
				mode := ""
				if r.DryRun {
					mode = " (dry run)"
				}
				fmt.Fprintf(out, "%s  %s  %d/%d processed, %d failed%s\n",
					r.RunID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Processed, r.TotalDocuments, r.Failed, mode)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "Number of runs to list")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin and stdout",
		Long: `Expose classification, taxonomy lookup and batch organization as MCP tools
over stdio. Logs go to stderr so they never interfere with the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			server, err := ctdmcp.NewServer(app)
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// relTo shortens path relative to base when it lies underneath
func relTo(base, path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, base+string(os.PathSeparator)) {
		return strings.TrimPrefix(path, base+string(os.PathSeparator))
	}
	return path
}

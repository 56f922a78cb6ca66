package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/ctd-organizer/internal/bootstrap"
	"github.com/a3tai/ctd-organizer/internal/descriptions"
	"github.com/a3tai/ctd-organizer/internal/discovery"
	"github.com/a3tai/ctd-organizer/internal/organizer"
	"github.com/a3tai/ctd-organizer/internal/placement"
	"github.com/a3tai/ctd-organizer/internal/taxonomy"
)

const (
	defaultLookupLimit  = 10
	defaultHistoryLimit = 10
	topScores           = 5
)

// Server represents the MCP server instance
type Server struct {
	app       *bootstrap.App
	preview   *organizer.Organizer
	sources   *placement.Guard
	mcpServer *server.MCPServer

	// only one batch may write into the tree at a time
	runMu sync.Mutex
}

// NewServer creates a new MCP server instance
func NewServer(app *bootstrap.App) (*Server, error) {
	if app == nil {
		return nil, fmt.Errorf("app cannot be nil")
	}

	// Classification previews never copy, so they get their own dry-run organizer.
	preview, err := app.Organizer(true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview organizer: %w", err)
	}
	sources, err := placement.NewGuard(app.Config.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("invalid source directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		app.Config.ServerName,
		app.Config.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		app:       app,
		preview:   preview,
		sources:   sources,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	classifyTool := mcp.NewTool(
		"ctd_classify_document",
		mcp.WithDescription(descriptions.GetToolDescription("ctd_classify_document")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(classifyTool, s.handleClassifyDocument)

	lookupTool := mcp.NewTool(
		"ctd_lookup_section",
		mcp.WithDescription(descriptions.GetToolDescription("ctd_lookup_section")),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Section identifier such as 3.2.P.8, or part of a section name"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of sections to return (default 10)"),
			mcp.Min(1),
		),
	)
	s.mcpServer.AddTool(lookupTool, s.handleLookupSection)

	organizeTool := mcp.NewTool(
		"ctd_organize_folder",
		mcp.WithDescription(descriptions.GetToolDescription("ctd_organize_folder")),
		mcp.WithBoolean("dry_run",
			mcp.Description("Plan destinations without copying any file (default true)"),
			mcp.DefaultBool(true),
		),
	)
	s.mcpServer.AddTool(organizeTool, s.handleOrganizeFolder)

	historyTool := mcp.NewTool(
		"ctd_run_history",
		mcp.WithDescription(descriptions.GetToolDescription("ctd_run_history")),
		mcp.WithString("source",
			mcp.Description("Optional source file path to trace across runs"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to list (default 10)"),
			mcp.Min(1),
		),
	)
	s.mcpServer.AddTool(historyTool, s.handleRunHistory)

	infoTool := mcp.NewTool(
		"ctd_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("ctd_server_info")),
	)
	s.mcpServer.AddTool(infoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleClassifyDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !discovery.IsPDF(path) {
		return mcp.NewToolResultError(fmt.Sprintf("not a PDF file: %s", path)), nil
	}
	if err := s.sources.Check(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot access file: %v", err)), nil
	}
	if info.IsDir() {
		return mcp.NewToolResultError(fmt.Sprintf("path is a directory: %s", path)), nil
	}

	out := s.preview.Classify(ctx, path)
	return mcp.NewToolResultText(s.formatOutcome(out)), nil
}

func (s *Server) handleLookupSection(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return mcp.NewToolResultError("query cannot be empty"), nil
	}
	limit := request.GetInt("limit", defaultLookupLimit)
	if limit < 1 {
		limit = defaultLookupLimit
	}

	matches := LookupSections(s.app.Index, query, limit)
	if len(matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("🔍 No CTD section matches %q", query)), nil
	}

	text := fmt.Sprintf("🔍 %d section(s) matching %q:\n\n", len(matches), query)
	for _, e := range matches {
		text += fmt.Sprintf("📁 %s\n", e.Name)
		text += fmt.Sprintf("   ID: %s\n", e.ID)
		text += fmt.Sprintf("   Folder: %s\n", s.relative(e.FolderPath))
		if e.Description != "" {
			text += fmt.Sprintf("   %s\n", e.Description)
		}
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleOrganizeFolder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dryRun := request.GetBool("dry_run", true)

	if !s.runMu.TryLock() {
		return mcp.NewToolResultError("an organize run is already in progress"), nil
	}
	defer s.runMu.Unlock()

	report, err := s.app.Organize(ctx, bootstrap.RunOptions{DryRun: dryRun})
	if report == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗂️  Run %s (%s)\n", report.Run.RunID, report.Discovery.Describe())
	report.Summary.Write(&b, s.app.Config.OutputDir)
	if report.AuditFile != "" {
		fmt.Fprintf(&b, "Audit log: %s\n", report.AuditFile)
	}
	if err != nil {
		fmt.Fprintf(&b, "\n⚠️  %v\n", err)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleRunHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.app.Ledger == nil {
		return mcp.NewToolResultError("audit ledger is not configured (start the server with --audit-db)"), nil
	}

	if source := request.GetString("source", ""); source != "" {
		mappings, err := s.app.Ledger.History(ctx, source)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(mappings) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("📜 No recorded runs include %s", source)), nil
		}
		text := fmt.Sprintf("📜 %s was organized %d time(s):\n\n", source, len(mappings))
		for _, m := range mappings {
			if m.Failed() {
				text += fmt.Sprintf("• %s ❌ %s\n", m.Timestamp.Format("2006-01-02 15:04:05"), m.Error)
				continue
			}
			text += fmt.Sprintf("• %s → %s\n  %s\n", m.Timestamp.Format("2006-01-02 15:04:05"), s.relative(m.Destination), m.Reason)
		}
		return mcp.NewToolResultText(text), nil
	}

	limit := request.GetInt("limit", defaultHistoryLimit)
	runs, err := s.app.Ledger.Runs(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("📜 No runs recorded yet"), nil
	}

	text := fmt.Sprintf("📜 %d recorded run(s), newest first:\n\n", len(runs))
	for _, r := range runs {
		mode := "organized"
		if r.DryRun {
			mode = "dry run"
		}
		text += fmt.Sprintf("• %s  %s  %s\n", r.RunID, r.Timestamp.Format("2006-01-02 15:04:05"), mode)
		text += fmt.Sprintf("  %d of %d processed, %d failed (%s → %s)\n",
			r.Processed, r.TotalDocuments, r.Failed, r.SourceFolder, r.CTDFolder)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

// LookupSections returns the section registered under query, or else up to
// limit sections whose identifier or name contains query, ignoring case.
func LookupSections(index *taxonomy.Index, query string, limit int) []taxonomy.Entry {
	if e, ok := index.Entry(query); ok {
		return []taxonomy.Entry{e}
	}

	needle := strings.ToLower(query)
	var out []taxonomy.Entry
	for _, e := range index.Entries() {
		if len(out) == limit {
			break
		}
		if strings.Contains(strings.ToLower(e.ID), needle) || strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Server) formatOutcome(out organizer.Outcome) string {
	res := out.Decision.Resolution

	text := fmt.Sprintf("📄 %s\n", out.Document.Path)
	text += fmt.Sprintf("📁 Destination: %s\n", s.relative(res.FolderPath))
	text += fmt.Sprintf("🏷️  Category: %s\n", res.Category)
	text += fmt.Sprintf("🧭 Strategy: %s\n", res.Strategy)
	text += fmt.Sprintf("💬 Reason: %s\n", res.Reason)

	if f := out.Extraction.Failure; f != nil {
		text += fmt.Sprintf("\n⚠️  No text extracted (%s); classified by filename only\n", f.Error())
	} else {
		text += fmt.Sprintf("\n📑 Pages read: %d, characters: %s\n", out.Extraction.Pages, humanize.Comma(int64(len(out.Extraction.Text))))
	}

	if sections := out.Decision.Evidence.Sections(); len(sections) > 0 {
		text += fmt.Sprintf("🔢 Sections found: %s\n", strings.Join(sections, ", "))
	}

	if scores := out.Decision.Scores.TopN(topScores); len(scores) > 0 {
		text += "\n📊 Top keyword scores:\n"
		for _, sc := range scores {
			text += fmt.Sprintf("   %4d  %s\n", sc.Score, sc.Category)
		}
	}
	return text
}

func (s *Server) formatServerInfo() string {
	cfg := s.app.Config
	stats := s.app.Index.Stats()

	text := fmt.Sprintf("📋 %s v%s - Server Information\n", cfg.ServerName, cfg.Version)
	text += fmt.Sprintf("📥 Source Directory: %s\n", cfg.SourceDir)
	text += fmt.Sprintf("📁 Output Directory: %s", cfg.OutputDir)
	if !s.app.TreeExists() {
		text += " (not created yet, run init)"
	}
	text += "\n"
	text += fmt.Sprintf("🗺️  Taxonomy: %s (%d folders, %d identifiers)\n", s.app.DefinitionPath(), stats.Folders, stats.Identifiers)
	text += fmt.Sprintf("📏 Max File Size: %s\n", humanize.IBytes(uint64(cfg.MaxFileSize)))
	text += fmt.Sprintf("⏱️  Extraction Timeout: %s\n", cfg.ExtractTimeout)
	if cfg.AuditDB != "" {
		text += fmt.Sprintf("📜 Audit Ledger: %s\n", cfg.AuditDB)
	}

	if len(stats.Modules) > 0 {
		text += "\n📚 Modules:\n"
		for _, m := range stats.Modules {
			text += fmt.Sprintf("   • %s\n", m)
		}
	}

	text += "\n🛠️  Available Tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		summary, _, _ := strings.Cut(descriptions.GetToolDescription(name), "\n")
		text += fmt.Sprintf("   • %s: %s\n", name, summary)
	}
	return text
}

// relative shortens a folder under the output root for display
func (s *Server) relative(path string) string {
	if rel, err := filepath.Rel(s.app.Config.OutputDir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// Run serves MCP over stdin and stdout until ctx is cancelled or stdin closes
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over the given streams
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.app.Logger.Debug("starting MCP server on stdio",
		"source", s.app.Config.SourceDir,
		"output", s.app.Config.OutputDir)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.app.Logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

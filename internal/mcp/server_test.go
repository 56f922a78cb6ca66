package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/ctd-organizer/internal/bootstrap"
	"github.com/a3tai/ctd-organizer/internal/config"
	"github.com/a3tai/ctd-organizer/internal/logging"
	"github.com/a3tai/ctd-organizer/internal/pdftest"
)

const qosText = "This Quality Overall Summary covers Module 2.3 of the dossier"

// newTestServer builds a server over a fresh source folder and CTD tree
func newTestServer(t *testing.T, withLedger bool) (*Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.SourceDir = filepath.Join(dir, "documents_to_organize")
	cfg.OutputDir = filepath.Join(dir, "organized_ctd")
	cfg.AuditFile = filepath.Join(dir, "organized_mapping.json")
	cfg.Workers = 2
	cfg.Version = "1.0.0"
	if withLedger {
		cfg.AuditDB = filepath.Join(dir, "ledger.db")
	}
	if err := os.MkdirAll(cfg.SourceDir, 0o755); err != nil {
		t.Fatal(err)
	}

	app, err := bootstrap.New(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("bootstrap.New() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	if _, err := app.Init(context.Background(), false); err != nil {
		t.Fatalf("Init() unexpected error: %v", err)
	}

	s, err := NewServer(app)
	if err != nil {
		t.Fatalf("NewServer() unexpected error: %v", err)
	}
	return s, cfg
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// resultText returns the text of a tool result
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("result content is %T, want text", result.Content[0])
	}
	return tc.Text
}

func TestNewServer(t *testing.T) {
	if _, err := NewServer(nil); err == nil {
		t.Error("NewServer(nil) expected error, got nil")
	}

	s, cfg := newTestServer(t, false)
	if s.mcpServer == nil {
		t.Fatal("mcpServer should not be nil")
	}
	if s.app.Config != cfg {
		t.Error("server config not set correctly")
	}
	if s.preview == nil {
		t.Error("preview organizer should not be nil")
	}
}

func TestHandleClassifyDocument(t *testing.T) {
	s, cfg := newTestServer(t, false)
	qos := pdftest.Write(t, cfg.SourceDir, "m2/qos_report.pdf", pdftest.Build(qosText))
	broken := pdftest.Write(t, cfg.SourceDir, "cover_letter.pdf", []byte("not a pdf"))
	elsewhere := pdftest.Write(t, t.TempDir(), "qos_report.pdf", pdftest.Build(qosText))

	tests := []struct {
		name        string
		args        map[string]any
		expectError bool
		contains    []string
	}{
		{
			name:     "section match",
			args:     map[string]any{"path": qos},
			contains: []string{"Strategy: exact_section", "Exact CTD section match: 2.3", "Sections found: 2.3"},
		},
		{
			name:     "no text falls back to filename",
			args:     map[string]any{"path": broken},
			contains: []string{"classified by filename only", "1.0.1 Cover Letter"},
		},
		{
			name:        "missing path argument",
			args:        map[string]any{},
			expectError: true,
		},
		{
			name:        "not a pdf",
			args:        map[string]any{"path": filepath.Join(cfg.SourceDir, "notes.txt")},
			expectError: true,
		},
		{
			name:        "outside source folder",
			args:        map[string]any{"path": elsewhere},
			expectError: true,
			contains:    []string{"path is outside"},
		},
		{
			name:        "relative escape",
			args:        map[string]any{"path": filepath.Join(cfg.SourceDir, "..", "organized_mapping.pdf")},
			expectError: true,
			contains:    []string{"path is outside"},
		},
		{
			name:        "missing file",
			args:        map[string]any{"path": filepath.Join(cfg.SourceDir, "absent.pdf")},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleClassifyDocument(context.Background(), callRequest("ctd_classify_document", tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if result.IsError != tt.expectError {
				t.Fatalf("IsError = %v, want %v (%s)", result.IsError, tt.expectError, resultText(t, result))
			}
			text := resultText(t, result)
			for _, want := range tt.contains {
				if !strings.Contains(text, want) {
					t.Errorf("result should contain %q, got:\n%s", want, text)
				}
			}
		})
	}

	// classification never copies
	entries, err := os.ReadDir(filepath.Join(cfg.OutputDir))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() == "Uncategorized" {
			t.Error("classify should not create the Uncategorized folder")
		}
	}
}

func TestHandleLookupSection(t *testing.T) {
	s, _ := newTestServer(t, false)

	tests := []struct {
		name        string
		args        map[string]any
		expectError bool
		contains    []string
		absent      []string
	}{
		{
			name:     "exact identifier",
			args:     map[string]any{"query": "3.2.P.8"},
			contains: []string{"1 section(s)", "ID: 3.2.P.8"},
		},
		{
			name:     "name fragment ignores case",
			args:     map[string]any{"query": "stability", "limit": float64(50)},
			contains: []string{"3.2.P.8", "3.2.S.7"},
		},
		{
			name:     "limit applies",
			args:     map[string]any{"query": "module", "limit": float64(2)},
			contains: []string{"2 section(s)"},
		},
		{
			name:     "no match",
			args:     map[string]any{"query": "zzz-not-a-section"},
			contains: []string{"No CTD section matches"},
		},
		{
			name:        "empty query",
			args:        map[string]any{"query": "  "},
			expectError: true,
		},
		{
			name:        "missing query",
			args:        map[string]any{},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleLookupSection(context.Background(), callRequest("ctd_lookup_section", tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if result.IsError != tt.expectError {
				t.Fatalf("IsError = %v, want %v", result.IsError, tt.expectError)
			}
			text := resultText(t, result)
			for _, want := range tt.contains {
				if !strings.Contains(text, want) {
					t.Errorf("result should contain %q, got:\n%s", want, text)
				}
			}
		})
	}
}

func TestLookupSections(t *testing.T) {
	s, _ := newTestServer(t, false)

	got := LookupSections(s.app.Index, "2.3", 10)
	if len(got) != 1 || got[0].ID != "2.3" {
		t.Errorf("LookupSections(2.3) = %+v, want the single 2.3 entry", got)
	}

	got = LookupSections(s.app.Index, "quality", 3)
	if len(got) != 3 {
		t.Fatalf("LookupSections(quality, 3) returned %d entries", len(got))
	}
	for _, e := range got {
		if !strings.Contains(strings.ToLower(e.Name), "quality") {
			t.Errorf("unexpected match %q", e.Name)
		}
	}
}

func TestHandleOrganizeFolder(t *testing.T) {
	s, cfg := newTestServer(t, true)
	pdftest.Write(t, cfg.SourceDir, "m2/qos_report.pdf", pdftest.Build(qosText))
	pdftest.Write(t, cfg.SourceDir, "random_doc_42.pdf", pdftest.Build("lorem ipsum dolor sit amet"))

	// dry run by default
	result, err := s.handleOrganizeFolder(context.Background(), callRequest("ctd_organize_folder", map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	text := resultText(t, result)
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", text)
	}
	for _, want := range []string{"DRY RUN COMPLETE", "Successfully planned 2 out of 2 files", "2 PDF file(s) in modules m2", "Audit log:"} {
		if !strings.Contains(text, want) {
			t.Errorf("dry run result should contain %q, got:\n%s", want, text)
		}
	}
	qosFolder, _ := s.app.Index.Lookup("2.3")
	if _, err := os.Stat(filepath.Join(qosFolder, "qos_report.pdf")); !os.IsNotExist(err) {
		t.Error("dry run should not copy files")
	}

	result, err = s.handleOrganizeFolder(context.Background(), callRequest("ctd_organize_folder", map[string]any{"dry_run": false}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	text = resultText(t, result)
	if !strings.Contains(text, "ORGANIZATION COMPLETE") {
		t.Errorf("result should report completion, got:\n%s", text)
	}
	if _, err := os.Stat(filepath.Join(qosFolder, "qos_report.pdf")); err != nil {
		t.Errorf("qos_report.pdf should have been copied: %v", err)
	}
}

func TestHandleOrganizeFolderWithoutTree(t *testing.T) {
	s, cfg := newTestServer(t, false)
	if err := os.RemoveAll(cfg.OutputDir); err != nil {
		t.Fatal(err)
	}

	result, err := s.handleOrganizeFolder(context.Background(), callRequest("ctd_organize_folder", map[string]any{"dry_run": true}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected a tool error when the tree is missing")
	}
	if !strings.Contains(resultText(t, result), "run init first") {
		t.Errorf("unexpected message: %s", resultText(t, result))
	}
}

func TestHandleOrganizeFolderBusy(t *testing.T) {
	s, _ := newTestServer(t, false)
	s.runMu.Lock()
	defer s.runMu.Unlock()

	result, err := s.handleOrganizeFolder(context.Background(), callRequest("ctd_organize_folder", nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Error("a second concurrent run should be rejected")
	}
}

func TestHandleRunHistory(t *testing.T) {
	s, cfg := newTestServer(t, true)
	src := pdftest.Write(t, cfg.SourceDir, "m2/qos_report.pdf", pdftest.Build(qosText))

	result, err := s.handleRunHistory(context.Background(), callRequest("ctd_run_history", nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "No runs recorded yet") {
		t.Errorf("empty ledger result = %s", text)
	}

	for _, dry := range []bool{true, false} {
		if _, err := s.handleOrganizeFolder(context.Background(), callRequest("ctd_organize_folder", map[string]any{"dry_run": dry})); err != nil {
			t.Fatal(err)
		}
	}

	result, _ = s.handleRunHistory(context.Background(), callRequest("ctd_run_history", map[string]any{"limit": float64(5)}))
	text := resultText(t, result)
	if !strings.Contains(text, "2 recorded run(s)") || !strings.Contains(text, "dry run") {
		t.Errorf("runs result = %s", text)
	}

	result, _ = s.handleRunHistory(context.Background(), callRequest("ctd_run_history", map[string]any{"source": src}))
	text = resultText(t, result)
	if !strings.Contains(text, "organized 2 time(s)") || !strings.Contains(text, "Exact CTD section match: 2.3") {
		t.Errorf("history result = %s", text)
	}
}

func TestHandleRunHistoryWithoutLedger(t *testing.T) {
	s, _ := newTestServer(t, false)
	result, err := s.handleRunHistory(context.Background(), callRequest("ctd_run_history", nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error without a ledger")
	}
}

func TestHandleServerInfo(t *testing.T) {
	s, cfg := newTestServer(t, false)
	result, err := s.handleServerInfo(context.Background(), callRequest("ctd_server_info", nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	text := resultText(t, result)

	for _, want := range []string{
		"ctd-organizer v1.0.0",
		"Source Directory: " + cfg.SourceDir,
		"Output Directory: " + cfg.OutputDir,
		"100 MiB",
		"ctd_classify_document",
		"ctd_organize_folder",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("server info should contain %q, got:\n%s", want, text)
		}
	}
	if strings.Contains(text, "not created yet") {
		t.Error("tree exists after init")
	}
}

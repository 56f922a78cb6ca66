package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestServeStdio(t *testing.T) {
	s, _ := newTestServer(t, false)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"ctd_lookup_section","arguments":{"query":"2.3"}}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Serve(ctx, strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve() unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 responses, got %d:\n%s", len(lines), out.String())
	}
	for i, line := range lines {
		var resp map[string]any
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("response %d is not JSON: %v", i+1, err)
		}
		if _, hasErr := resp["error"]; hasErr {
			t.Errorf("response %d is an error: %s", i+1, line)
		}
	}

	for _, name := range []string{"ctd_classify_document", "ctd_lookup_section", "ctd_organize_folder", "ctd_run_history", "ctd_server_info"} {
		if !strings.Contains(lines[1], name) {
			t.Errorf("tools/list should include %s", name)
		}
	}
	if !strings.Contains(lines[2], "Quality Overall Summary") {
		t.Errorf("tools/call response = %s", lines[2])
	}
}

func TestServeCancelledContext(t *testing.T) {
	s, _ := newTestServer(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Serve(ctx, strings.NewReader(""), &bytes.Buffer{}); err != nil {
		t.Errorf("Serve() with cancelled context should stop cleanly, got %v", err)
	}
}

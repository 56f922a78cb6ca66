package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.SourceDir != "documents_to_organize" {
		t.Errorf("Expected default source dir to be 'documents_to_organize', got '%s'", cfg.SourceDir)
	}

	if cfg.OutputDir != "organized_ctd" {
		t.Errorf("Expected default output dir to be 'organized_ctd', got '%s'", cfg.OutputDir)
	}

	if cfg.AuditFile != "organized_mapping.json" {
		t.Errorf("Expected default audit file to be 'organized_mapping.json', got '%s'", cfg.AuditFile)
	}

	if cfg.ServerName != "ctd-organizer" {
		t.Errorf("Expected default server name to be 'ctd-organizer', got '%s'", cfg.ServerName)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}

	if cfg.MaxPages != 0 {
		t.Errorf("Expected default max pages to be 0, got %d", cfg.MaxPages)
	}

	if cfg.ExtractTimeout != 60*time.Second {
		t.Errorf("Expected default extraction timeout to be 60s, got %s", cfg.ExtractTimeout)
	}

	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("Expected default workers to be %d, got %d", runtime.NumCPU(), cfg.Workers)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			modify: func(c *Config) {},
		},
		{
			name:   "valid json logging",
			modify: func(c *Config) { c.LogFormat = "json"; c.LogLevel = "debug" },
		},
		{
			name:    "empty source",
			modify:  func(c *Config) { c.SourceDir = "  " },
			wantErr: "source directory cannot be empty",
		},
		{
			name:    "empty output",
			modify:  func(c *Config) { c.OutputDir = "" },
			wantErr: "output directory cannot be empty",
		},
		{
			name:    "output equals source",
			modify:  func(c *Config) { c.OutputDir = c.SourceDir },
			wantErr: "must not be inside source directory",
		},
		{
			name:    "output nested in source",
			modify:  func(c *Config) { c.OutputDir = filepath.Join(c.SourceDir, "out") },
			wantErr: "must not be inside source directory",
		},
		{
			name:   "output sibling with shared prefix",
			modify: func(c *Config) { c.OutputDir = c.SourceDir + "_organized" },
		},
		{
			name:    "zero max file size",
			modify:  func(c *Config) { c.MaxFileSize = 0 },
			wantErr: "maximum file size must be positive",
		},
		{
			name:    "negative max pages",
			modify:  func(c *Config) { c.MaxPages = -1 },
			wantErr: "maximum pages cannot be negative",
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.ExtractTimeout = 0 },
			wantErr: "extraction timeout must be positive",
		},
		{
			name:    "no workers",
			modify:  func(c *Config) { c.Workers = 0 },
			wantErr: "workers must be at least 1",
		},
		{
			name:    "no cache",
			modify:  func(c *Config) { c.CacheSize = 0 },
			wantErr: "cache size must be at least 1",
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid log format",
			modify:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigIsDebug(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.IsDebug() {
		t.Error("IsDebug() should be false for info level")
	}
	cfg.LogLevel = "debug"
	if !cfg.IsDebug() {
		t.Error("IsDebug() should be true for debug level")
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DryRun = true
	str := cfg.String()

	expectedSubstrings := []string{
		"SourceDir: documents_to_organize",
		"OutputDir: organized_ctd",
		"AuditFile: organized_mapping.json",
		"LogLevel: info",
		"MaxFileSize: 104857600",
		"ExtractTimeout: 1m0s",
		"DryRun: true",
	}

	for _, expected := range expectedSubstrings {
		if !strings.Contains(str, expected) {
			t.Errorf("String() = %v, should contain %v", str, expected)
		}
	}
}

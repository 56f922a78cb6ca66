package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/ctd-organizer/internal/failure"
	"github.com/a3tai/ctd-organizer/internal/logging"
)

const (
	// EnvPrefix is prepended to every environment variable, e.g. CTD_SOURCE_DIR
	EnvPrefix = "CTD"

	// Default values
	DefaultSourceDir      = "documents_to_organize"
	DefaultOutputDir      = "organized_ctd"
	DefaultAuditFile      = "organized_mapping.json"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultMaxFileSize    = 100 * 1024 * 1024 // 100MB
	DefaultExtractTimeout = 60 * time.Second
	DefaultCacheSize      = 256
	DefaultServerName     = "ctd-organizer"
)

// Flag and config-file keys
const (
	KeyConfig         = "config"
	KeySourceDir      = "source-dir"
	KeyOutputDir      = "output-dir"
	KeyTaxonomyFile   = "taxonomy-file"
	KeyRulesFile      = "rules-file"
	KeyAuditFile      = "audit-file"
	KeyAuditDB        = "audit-db"
	KeyMetricsFile    = "metrics-file"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyLogFile        = "log-file"
	KeyMaxFileSize    = "max-file-size"
	KeyMaxPages       = "max-pages"
	KeyExtractTimeout = "extract-timeout"
	KeyWorkers        = "workers"
	KeyCacheSize      = "cache-size"
	KeyYes            = "yes"
)

// Config holds all configuration for the organizer
type Config struct {
	// Folders
	SourceDir string
	OutputDir string

	// Optional inputs; empty means the built-in taxonomy and keyword tables
	TaxonomyFile string
	RulesFile    string

	// Outputs
	AuditFile   string
	AuditDB     string
	MetricsFile string

	LogLevel  string
	LogFormat string
	LogFile   string

	// Extraction limits
	MaxFileSize    int64
	MaxPages       int
	ExtractTimeout time.Duration
	CacheSize      int

	Workers int

	// Run behaviour, set per command
	AssumeYes bool
	DryRun    bool
	Progress  bool

	// Application configuration
	ServerName string
	Version    string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SourceDir:      DefaultSourceDir,
		OutputDir:      DefaultOutputDir,
		AuditFile:      DefaultAuditFile,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		MaxFileSize:    DefaultMaxFileSize,
		ExtractTimeout: DefaultExtractTimeout,
		CacheSize:      DefaultCacheSize,
		Workers:        runtime.NumCPU(),
		ServerName:     DefaultServerName,
		Version:        "dev",
	}
}

// RegisterFlags defines the shared flags on fs using cfg for defaults
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String(KeyConfig, "", "Optional YAML config file")
	fs.String(KeySourceDir, cfg.SourceDir, "Folder containing the documents to organize")
	fs.String(KeyOutputDir, cfg.OutputDir, "Root of the CTD folder tree")
	fs.String(KeyTaxonomyFile, cfg.TaxonomyFile, "Taxonomy definition (YAML or JSON); built-in CTD tree when empty")
	fs.String(KeyRulesFile, cfg.RulesFile, "Keyword rule table (YAML or JSON); built-in table when empty")
	fs.String(KeyAuditFile, cfg.AuditFile, "Where to write the JSON audit log (empty disables)")
	fs.String(KeyAuditDB, cfg.AuditDB, "Optional SQLite ledger that accumulates every run")
	fs.String(KeyMetricsFile, cfg.MetricsFile, "Optional Prometheus textfile for run metrics")
	fs.String(KeyLogLevel, cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, cfg.LogFormat, "Log format (text, json)")
	fs.String(KeyLogFile, cfg.LogFile, "Also append logs to this file")
	fs.Int64(KeyMaxFileSize, cfg.MaxFileSize, "Maximum PDF file size in bytes")
	fs.Int(KeyMaxPages, cfg.MaxPages, "Maximum pages read per document (0 reads all)")
	fs.Duration(KeyExtractTimeout, cfg.ExtractTimeout, "Per-document text extraction timeout")
	fs.Int(KeyWorkers, cfg.Workers, "Concurrent classification workers")
	fs.Int(KeyCacheSize, cfg.CacheSize, "Extracted-text cache entries")
	fs.BoolP(KeyYes, "y", cfg.AssumeYes, "Answer yes to confirmation prompts")
}

// Load resolves the configuration from flags, CTD_* environment variables
// and an optional config file, in that order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, failure.Wrap(failure.KindConfiguration, err, "failed to bind flags")
	}

	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, failure.Wrap(failure.KindConfiguration, err, "failed to read config file").WithPath(path)
		}
	}

	cfg := DefaultConfig()
	populateConfigFromViper(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, failure.Wrap(failure.KindConfiguration, err, "invalid configuration")
	}
	return cfg, nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.SourceDir = v.GetString(KeySourceDir)
	cfg.OutputDir = v.GetString(KeyOutputDir)
	cfg.TaxonomyFile = v.GetString(KeyTaxonomyFile)
	cfg.RulesFile = v.GetString(KeyRulesFile)
	cfg.AuditFile = v.GetString(KeyAuditFile)
	cfg.AuditDB = v.GetString(KeyAuditDB)
	cfg.MetricsFile = v.GetString(KeyMetricsFile)
	cfg.LogLevel = v.GetString(KeyLogLevel)
	cfg.LogFormat = v.GetString(KeyLogFormat)
	cfg.LogFile = v.GetString(KeyLogFile)
	cfg.MaxFileSize = v.GetInt64(KeyMaxFileSize)
	cfg.MaxPages = v.GetInt(KeyMaxPages)
	cfg.ExtractTimeout = v.GetDuration(KeyExtractTimeout)
	cfg.Workers = v.GetInt(KeyWorkers)
	cfg.CacheSize = v.GetInt(KeyCacheSize)
	cfg.AssumeYes = v.GetBool(KeyYes)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SourceDir) == "" {
		return errors.New("source directory cannot be empty")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output directory cannot be empty")
	}

	// Copies placed under the source would be rediscovered on the next run.
	src, err := filepath.Abs(c.SourceDir)
	if err != nil {
		return fmt.Errorf("cannot resolve source directory: %w", err)
	}
	out, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return fmt.Errorf("cannot resolve output directory: %w", err)
	}
	if out == src || strings.HasPrefix(out, src+string(filepath.Separator)) {
		return fmt.Errorf("output directory %s must not be inside source directory %s", c.OutputDir, c.SourceDir)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.MaxPages < 0 {
		return errors.New("maximum pages cannot be negative")
	}
	if c.ExtractTimeout <= 0 {
		return errors.New("extraction timeout must be positive")
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.CacheSize < 1 {
		return errors.New("cache size must be at least 1")
	}

	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.LogFormat)
	}

	return nil
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{SourceDir: %s, OutputDir: %s, TaxonomyFile: %s, RulesFile: %s, AuditFile: %s, "+
		"LogLevel: %s, MaxFileSize: %d, MaxPages: %d, ExtractTimeout: %s, Workers: %d, DryRun: %t}",
		c.SourceDir, c.OutputDir, c.TaxonomyFile, c.RulesFile, c.AuditFile,
		c.LogLevel, c.MaxFileSize, c.MaxPages, c.ExtractTimeout, c.Workers, c.DryRun)
}

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
)

const (
	// Mode constants
	ModeCLI   = "cli"
	ModeStdio = "stdio"

	// Default values
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultOutputDir   = "extracted"
	DefaultServerName  = "pdf-field-extractor"

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "MCP_PDF"
)

// ErrVersionRequested is returned by Load when --version is given.
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the extractor CLI and MCP server
type Config struct {
	Mode string // "cli" or "stdio"

	// Input confinement root and the document to process in cli mode.
	PDFDirectory string
	Input        string

	// Query (cli mode)
	Field    string
	Value    string
	Match    string
	Discover bool

	// Vocabulary
	Fields        []string
	FieldPatterns map[string]string

	// Page text resolution
	MinTextLength int
	DPI           int
	OCR           bool
	OCRLanguage   string
	TessdataDir   string
	Pdftoppm      string
	Workers       int
	PageCache     int // resolved pages reused within one run, 0 disables

	// Output
	OutputDir string
	Split     bool
	Ledger    bool

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
	ConfigFile  string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:          ModeCLI,
		PDFDirectory:  currentDir,
		Match:         string(extract.MatchField),
		Fields:        append([]string(nil), extract.DefaultFields...),
		FieldPatterns: map[string]string{},
		MinTextLength: extract.DefaultMinTextLength,
		DPI:           extract.DefaultDPI,
		OCR:           true,
		OCRLanguage:   extract.DefaultOCRLanguage,
		Pdftoppm:      "pdftoppm",
		Workers:       1,
		PageCache:     extract.DefaultPageCacheSize,
		OutputDir:     DefaultOutputDir,
		Version:       "1.0.0",
		ServerName:    DefaultServerName,
		LogLevel:      DefaultLogLevel,
		MaxFileSize:   DefaultMaxFileSize,
	}
}

// Load parses args with flags, MCP_PDF_* environment variables and an
// optional config file, in decreasing precedence. A single positional
// argument is taken as the input PDF.
func Load(program string, args []string, usageOut io.Writer) (*Config, error) {
	cfg := DefaultConfig()

	// Check for version flag before parsing
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return nil, ErrVersionRequested
		}
	}

	v := viper.New()
	setupViperEnvironment(v, cfg)
	fs := defineCommandLineFlags(program, cfg)
	fs.SetOutput(usageOut)
	setupUsageMessage(fs, program, usageOut)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	populateConfigFromViper(v, cfg)

	if rest := fs.Args(); len(rest) > 0 {
		if len(rest) > 1 {
			return nil, fmt.Errorf("expected at most one input PDF, got %d", len(rest))
		}
		if cfg.Input != "" {
			return nil, errors.New("input given both as --input and as an argument")
		}
		cfg.Input = rest[0]
	}

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("dir", cfg.PDFDirectory)
	v.SetDefault("match", cfg.Match)
	v.SetDefault("fields", cfg.Fields)
	v.SetDefault("min-text-length", cfg.MinTextLength)
	v.SetDefault("dpi", cfg.DPI)
	v.SetDefault("ocr", cfg.OCR)
	v.SetDefault("ocr-lang", cfg.OCRLanguage)
	v.SetDefault("pdftoppm", cfg.Pdftoppm)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("page-cache", cfg.PageCache)
	v.SetDefault("out", cfg.OutputDir)
	v.SetDefault("loglevel", cfg.LogLevel)
	v.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(program string, cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet(program, pflag.ContinueOnError)
	fs.String("mode", cfg.Mode, "Run mode: 'cli' for one extraction, 'stdio' for the MCP server")
	fs.String("dir", cfg.PDFDirectory, "Directory input PDFs must live in")
	fs.String("input", "", "PDF to process (cli mode); may also be given as the only argument")
	fs.String("field", "", "Field to match, e.g. \"HEAT NO\"")
	fs.String("value", "", "Value to look for")
	fs.String("match", cfg.Match, "Match mode: field, text or line")
	fs.Bool("discover", false, "Accept a field outside the vocabulary when the document carries it")
	fs.StringSlice("fields", cfg.Fields, "Field vocabulary, comma separated")
	fs.Int("min-text-length", cfg.MinTextLength, "Direct text shorter than this (trimmed) triggers OCR")
	fs.Int("dpi", cfg.DPI, "Render resolution for OCR")
	fs.Bool("ocr", cfg.OCR, "Enable the OCR fallback")
	fs.String("ocr-lang", cfg.OCRLanguage, "Tesseract language")
	fs.String("tessdata", "", "Tesseract tessdata directory")
	fs.String("pdftoppm", cfg.Pdftoppm, "pdftoppm binary used to render pages")
	fs.Int("workers", cfg.Workers, "Pages processed in parallel")
	fs.Int("page-cache", cfg.PageCache, "Resolved pages reused between discovery and extraction in one run (0 disables)")
	fs.String("out", cfg.OutputDir, "Output root directory")
	fs.Bool("split", false, "Also write one PDF per matched page")
	fs.Bool("ledger", false, "Record runs in a SQLite ledger in the output root")
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	fs.String("config", "", "Config file (yaml, toml or json)")
	return fs
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet, program string, w io.Writer) {
	fs.Usage = func() {
		fmt.Fprintf(w, "Usage of %s:\n", program)
		fmt.Fprintf(w, "\nPDF Field Extractor - extract the pages of a PDF whose field matches a value\n\n")
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  %s --field \"HEAT NO\" --value AB/123 certs.pdf   # writes extracted/HEATNO_AB-123/\n", program)
		fmt.Fprintf(w, "  %s --match text --value ACME --split certs.pdf\n", program)
		fmt.Fprintf(w, "  %s --mode=stdio --dir=/path/to/pdfs             # MCP server\n", program)
		fmt.Fprintf(w, "\nEnvironment Variables:\n")
		fmt.Fprintf(w, "  %s_MODE, %s_DIR, %s_FIELDS, %s_OUT, %s_OCR, %s_WORKERS, %s_LOGLEVEL, ...\n",
			envPrefix, envPrefix, envPrefix, envPrefix, envPrefix, envPrefix, envPrefix)
		fmt.Fprintf(w, "  (flag name upper-cased, '-' replaced by '_')\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.PDFDirectory = v.GetString("dir")
	cfg.Input = v.GetString("input")
	cfg.Field = v.GetString("field")
	cfg.Value = v.GetString("value")
	cfg.Match = v.GetString("match")
	cfg.Discover = v.GetBool("discover")
	cfg.Fields = stringList(v.Get("fields"))
	cfg.FieldPatterns = v.GetStringMapString("field_patterns")
	cfg.MinTextLength = v.GetInt("min-text-length")
	cfg.DPI = v.GetInt("dpi")
	cfg.OCR = v.GetBool("ocr")
	cfg.OCRLanguage = v.GetString("ocr-lang")
	cfg.TessdataDir = v.GetString("tessdata")
	cfg.Pdftoppm = v.GetString("pdftoppm")
	cfg.Workers = v.GetInt("workers")
	cfg.PageCache = v.GetInt("page-cache")
	cfg.OutputDir = v.GetString("out")
	cfg.Split = v.GetBool("split")
	cfg.Ledger = v.GetBool("ledger")
	cfg.LogLevel = v.GetString("loglevel")
	cfg.MaxFileSize = v.GetInt64("maxfilesize")
	cfg.ConfigFile = v.GetString("config")
}

// stringList accepts a list or a comma separated string. Field names
// contain spaces, so whitespace is not a separator.
func stringList(raw any) []string {
	var items []string
	switch x := raw.(type) {
	case string:
		items = strings.Split(x, ",")
	case []string:
		items = x
	case []any:
		for _, e := range x {
			items = append(items, fmt.Sprint(e))
		}
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeCLI && c.Mode != ModeStdio {
		return errors.New("mode must be either 'cli' or 'stdio'")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if _, err := extract.ParseMatchMode(c.Match); err != nil {
		return err
	}
	if _, err := c.Vocabulary(); err != nil {
		return err
	}
	if c.MinTextLength < 1 {
		return errors.New("min-text-length must be at least 1")
	}
	if c.DPI < 72 || c.DPI > 1200 {
		return fmt.Errorf("dpi must be between 72 and 1200, got %d", c.DPI)
	}
	if c.Workers < 1 || c.Workers > 4*runtime.NumCPU() {
		return fmt.Errorf("workers must be between 1 and %d, got %d", 4*runtime.NumCPU(), c.Workers)
	}
	if c.PageCache < 0 {
		return errors.New("page-cache must not be negative")
	}
	if c.OutputDir == "" {
		return errors.New("output directory cannot be empty")
	}

	if c.IsCLIMode() {
		if c.Input == "" {
			return errors.New("an input PDF is required in cli mode")
		}
		if strings.TrimSpace(c.Value) == "" {
			return errors.New("--value is required in cli mode")
		}
	}
	return nil
}

// Vocabulary builds the field rules from Fields and FieldPatterns.
func (c *Config) Vocabulary() (extract.Vocabulary, error) {
	vocab, err := extract.NewVocabulary(c.Fields, c.FieldPatterns)
	if err != nil {
		return nil, err
	}
	if _, err := extract.NewFieldExtractor(vocab); err != nil {
		return nil, err
	}
	return vocab, nil
}

// ResolvedOutputDir returns OutputDir, relative paths taken from PDFDirectory.
func (c *Config) ResolvedOutputDir() string {
	if filepath.IsAbs(c.OutputDir) {
		return c.OutputDir
	}
	return filepath.Join(c.PDFDirectory, c.OutputDir)
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, PDFDirectory: %s, Input: %s, Field: %q, Value: %q, Match: %s, "+
		"Fields: %v, OCR: %t, Workers: %d, OutputDir: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.PDFDirectory, c.Input, c.Field, c.Value, c.Match,
		c.Fields, c.OCR, c.Workers, c.OutputDir, c.LogLevel, c.MaxFileSize)
}

// IsCLIMode returns true for a single command-line extraction
func (c *Config) IsCLIMode() bool {
	return c.Mode == ModeCLI
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

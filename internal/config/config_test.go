package config

import (
	"bytes"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
)

// clearEnvVars keeps MCP_PDF_* settings of the host out of the tests.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MODE", "DIR", "INPUT", "FIELD", "VALUE", "MATCH", "FIELDS", "OUT", "OCR",
		"WORKERS", "LOGLEVEL", "MAXFILESIZE", "SPLIT", "DPI", "MIN_TEXT_LENGTH",
	} {
		t.Setenv("MCP_PDF_"+k, "")
		os.Unsetenv("MCP_PDF_" + k)
	}
}

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	return Load("pdf-field-extractor", args, &bytes.Buffer{})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeCLI, cfg.Mode)
	assert.Equal(t, "field", cfg.Match)
	assert.Equal(t, extract.DefaultFields, cfg.Fields)
	assert.Equal(t, 20, cfg.MinTextLength)
	assert.Equal(t, 300, cfg.DPI)
	assert.True(t, cfg.OCR)
	assert.Equal(t, extract.DefaultOCRLanguage, cfg.OCRLanguage)
	assert.Equal(t, "eng", cfg.OCRLanguage)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, extract.DefaultPageCacheSize, cfg.PageCache)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, DefaultServerName, cfg.ServerName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)

	currentDir, _ := os.Getwd()
	assert.Equal(t, currentDir, cfg.PDFDirectory)
}

// config is loaded by every binary, so it must build without the cgo
// tesseract bindings.
func TestConfigImportsNoCgoPackages(t *testing.T) {
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)

	fset := token.NewFileSet()
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		require.NoError(t, err)
		for _, imp := range f.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			require.NoError(t, err)
			assert.NotContains(t, path, "gosseract", name)
			assert.False(t, strings.HasSuffix(path, "/internal/ocr"), "%s imports %s", name, path)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	valid := func() *Config {
		c := DefaultConfig()
		c.PDFDirectory = dir
		c.Input = "certs.pdf"
		c.Value = "H1"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid cli", mutate: func(*Config) {}},
		{name: "valid stdio without query", mutate: func(c *Config) { c.Mode = ModeStdio; c.Input = ""; c.Value = "" }},
		{name: "invalid mode", mutate: func(c *Config) { c.Mode = "server" }, wantErr: "mode"},
		{name: "empty directory", mutate: func(c *Config) { c.PDFDirectory = "" }, wantErr: "PDF directory"},
		{name: "zero max file size", mutate: func(c *Config) { c.MaxFileSize = 0 }, wantErr: "file size"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "log level"},
		{name: "bad match", mutate: func(c *Config) { c.Match = "fuzzy" }, wantErr: "match mode"},
		{name: "empty vocabulary", mutate: func(c *Config) { c.Fields = nil }, wantErr: "vocabulary"},
		{name: "pattern without group", mutate: func(c *Config) {
			c.FieldPatterns = map[string]string{"heat no": `HEAT NO \w+`}
		}, wantErr: "capture group"},
		{name: "low dpi", mutate: func(c *Config) { c.DPI = 10 }, wantErr: "dpi"},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: "workers"},
		{name: "negative page cache", mutate: func(c *Config) { c.PageCache = -1 }, wantErr: "page-cache"},
		{name: "zero min text", mutate: func(c *Config) { c.MinTextLength = 0 }, wantErr: "min-text-length"},
		{name: "cli without input", mutate: func(c *Config) { c.Input = "" }, wantErr: "input PDF"},
		{name: "cli without value", mutate: func(c *Config) { c.Value = " " }, wantErr: "--value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidate_CreatesDirectory(t *testing.T) {
	c := DefaultConfig()
	c.Mode = ModeStdio
	c.PDFDirectory = filepath.Join(t.TempDir(), "new", "pdfs")
	require.NoError(t, c.Validate())
	assert.DirExists(t, c.PDFDirectory)
}

func TestLoad_Flags(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()

	cfg, err := load(t,
		"--dir", dir,
		"--field", "heat no",
		"--value", "AB/123",
		"--fields", "HEAT NO,PLATE NO",
		"--workers", "4",
		"--ocr=false",
		"--split",
		"--out", "results",
		"certs.pdf",
	)
	require.NoError(t, err)

	assert.Equal(t, ModeCLI, cfg.Mode)
	assert.Equal(t, dir, cfg.PDFDirectory)
	assert.Equal(t, "certs.pdf", cfg.Input)
	assert.Equal(t, "heat no", cfg.Field)
	assert.Equal(t, "AB/123", cfg.Value)
	assert.Equal(t, []string{"HEAT NO", "PLATE NO"}, cfg.Fields)
	assert.Equal(t, 4, cfg.Workers)
	assert.False(t, cfg.OCR)
	assert.True(t, cfg.Split)
	assert.Equal(t, filepath.Join(dir, "results"), cfg.ResolvedOutputDir())
}

func TestLoad_Environment(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	t.Setenv("MCP_PDF_MODE", "stdio")
	t.Setenv("MCP_PDF_DIR", dir)
	t.Setenv("MCP_PDF_FIELDS", "HEAT NO, FLANGE NO")
	t.Setenv("MCP_PDF_MIN_TEXT_LENGTH", "40")
	t.Setenv("MCP_PDF_LOGLEVEL", "debug")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.True(t, cfg.IsStdioMode())
	assert.Equal(t, dir, cfg.PDFDirectory)
	assert.Equal(t, []string{"HEAT NO", "FLANGE NO"}, cfg.Fields)
	assert.Equal(t, 40, cfg.MinTextLength)
	assert.True(t, cfg.IsDebug())

	// Flags win over the environment.
	cfg, err = load(t, "--loglevel", "warn")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "extractor.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`mode: stdio
dir: `+dir+`
fields:
  - HEAT NO
  - CAST NO
field_patterns:
  CAST NO: '(?i)CAST\s*NO\s*:\s*(\d+)'
workers: 2
`), 0o600))

	cfg, err := load(t, "--config", file)
	require.NoError(t, err)
	assert.Equal(t, file, cfg.ConfigFile)
	assert.Equal(t, []string{"HEAT NO", "CAST NO"}, cfg.Fields)
	assert.Equal(t, 2, cfg.Workers)

	vocab, err := cfg.Vocabulary()
	require.NoError(t, err)
	assert.Equal(t, []string{"HEAT NO", "CAST NO"}, vocab.Names())
	assert.Equal(t, `(?i)CAST\s*NO\s*:\s*(\d+)`, vocab[1].Pattern)

	_, err = load(t, "--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()

	_, err := load(t, "--version")
	assert.ErrorIs(t, err, ErrVersionRequested)

	_, err = load(t, "--dir", dir, "--value", "x", "a.pdf", "b.pdf")
	assert.ErrorContains(t, err, "at most one")

	_, err = load(t, "--dir", dir, "--value", "x", "--input", "a.pdf", "b.pdf")
	assert.ErrorContains(t, err, "both")

	_, err = load(t, "--no-such-flag")
	assert.Error(t, err)

	_, err = load(t, "--dir", dir, "--mode", "server")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestConfigHelpers(t *testing.T) {
	c := DefaultConfig()
	c.OutputDir = "/abs/out"
	assert.Equal(t, "/abs/out", c.ResolvedOutputDir())

	for level, want := range map[string]string{"debug": "DEBUG", "info": "INFO", "warn": "WARN", "error": "ERROR"} {
		c.LogLevel = level
		assert.Equal(t, want, c.SlogLevel().String())
	}
	assert.Contains(t, c.String(), "Mode: cli")
	assert.True(t, c.IsCLIMode())
	assert.False(t, c.IsStdioMode())
}

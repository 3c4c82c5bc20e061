package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/a3tai/pdf-field-extractor/internal/config"
	"github.com/a3tai/pdf-field-extractor/internal/extract"
	"github.com/a3tai/pdf-field-extractor/internal/mcp"
	"github.com/a3tai/pdf-field-extractor/internal/ocr"
	"github.com/a3tai/pdf-field-extractor/internal/pdf"
	"github.com/a3tai/pdf-field-extractor/internal/summary"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// Exit codes of a cli run.
const (
	exitMatched   = 0
	exitError     = 1
	exitNoMatches = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[0], os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run loads the configuration and executes one cli extraction or serves MCP
// over stdio. Logs always go to stderr.
func run(ctx context.Context, program string, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(program, args, stderr)
	switch {
	case errors.Is(err, config.ErrVersionRequested):
		printVersion(stdout)
		return exitMatched
	case errors.Is(err, pflag.ErrHelp):
		return exitMatched
	case err != nil:
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", "config", cfg.String())

	svc, err := newService(cfg, logger)
	if err != nil {
		logger.Error("failed to create PDF service", "err", err)
		return exitError
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("failed to close ledger", "err", err)
		}
	}()

	if cfg.IsStdioMode() {
		server, err := mcp.NewServer(cfg, svc, logger)
		if err != nil {
			logger.Error("failed to create MCP server", "err", err)
			return exitError
		}
		if err := server.Run(ctx); err != nil {
			logger.Error("server error", "err", err)
			return exitError
		}
		return exitMatched
	}
	return runCLI(ctx, cfg, svc, stdout, stderr, logger)
}

func newService(cfg *config.Config, logger *slog.Logger) (*pdf.Service, error) {
	vocab, err := cfg.Vocabulary()
	if err != nil {
		return nil, err
	}

	sc := pdf.ServiceConfig{
		MaxFileSize:   cfg.MaxFileSize,
		Directory:     cfg.PDFDirectory,
		OutputDir:     cfg.ResolvedOutputDir(),
		Vocabulary:    vocab,
		MinTextLength: cfg.MinTextLength,
		DPI:           cfg.DPI,
		Workers:       cfg.Workers,
		PageCacheSize: pageCacheSize(cfg.PageCache),
		Pdftoppm:      cfg.Pdftoppm,
		Split:         cfg.Split,
		Logger:        logger,
	}
	if engine := ocrEngine(cfg, logger); engine != nil {
		sc.OCR = engine
	}
	if cfg.Ledger {
		sc.LedgerPath = filepath.Join(sc.OutputDir, summary.DefaultLedgerName)
		if err := os.MkdirAll(sc.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return pdf.NewService(sc)
}

// pageCacheSize maps the config value, where 0 disables the cache, to the
// service setting, where 0 selects the default.
func pageCacheSize(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

// ocrEngine returns nil when OCR is disabled or tesseract is missing, in which
// case scanned pages resolve to their (short) direct text.
func ocrEngine(cfg *config.Config, logger *slog.Logger) *ocr.TesseractEngine {
	if !cfg.OCR {
		return nil
	}
	if !ocr.Available() {
		logger.Warn("tesseract not found, OCR fallback disabled")
		return nil
	}
	return ocr.NewTesseractEngine(
		ocr.WithLanguages(strings.Split(cfg.OCRLanguage, "+")...),
		ocr.WithTessdataPrefix(cfg.TessdataDir),
		ocr.WithLogger(logger),
	)
}

func runCLI(ctx context.Context, cfg *config.Config, svc *pdf.Service, stdout, stderr io.Writer, logger *slog.Logger) int {
	progress := func(done, total int) {
		fmt.Fprintf(stderr, "\rprocessed %d/%d pages", done, total)
		if done == total {
			fmt.Fprintln(stderr)
		}
	}

	res, err := svc.ExtractByField(ctx, pdf.PDFExtractByFieldRequest{
		PDFFindPagesRequest: pdf.PDFFindPagesRequest{
			Path:     cfg.Input,
			Field:    cfg.Field,
			Value:    cfg.Value,
			Match:    cfg.Match,
			Discover: cfg.Discover,
		},
	}, progress)
	if err != nil {
		logger.Error("extraction failed", "input", cfg.Input, "err", err)
		return exitError
	}

	printResult(stdout, res)
	if res.Outcome == extract.OutcomeNoMatches {
		return exitNoMatches
	}
	return exitMatched
}

func printResult(w io.Writer, res *pdf.PDFExtractByFieldResult) {
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if res.Outcome == extract.OutcomeNoMatches {
		fmt.Fprintf(w, "No pages of %s matched %q.\n", filepath.Base(res.FilePath), res.Query.Value)
		return
	}

	pages := make([]string, len(res.Pages))
	for i, p := range res.Pages {
		pages[i] = fmt.Sprint(p)
	}
	fmt.Fprintf(w, "Matched %d of %d pages: %s\n", len(res.Pages), res.TotalPages, strings.Join(pages, ", "))
	if art := res.Artifacts; art != nil {
		fmt.Fprintf(w, "Combined PDF: %s\n", art.Combined)
		fmt.Fprintf(w, "Summary:      %s\n", art.Summary)
		fmt.Fprintf(w, "Report:       %s\n", art.Report)
		if len(art.Split) > 0 {
			fmt.Fprintf(w, "Split files:  %d in %s\n", len(art.Split), art.Dir)
		}
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "PDF Field Extractor\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}

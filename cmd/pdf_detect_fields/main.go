// Command pdf_detect_fields lists the "LABEL: value" field labels of a PDF,
// reading scanned pages through OCR, so a query field can be chosen before
// running an extraction.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
	"github.com/a3tai/pdf-field-extractor/internal/ocr"
	"github.com/a3tai/pdf-field-extractor/internal/pdf"
)

type options struct {
	format   string
	fields   []string
	ocr      bool
	ocrLang  string
	pdftoppm string
	dpi      int
	workers  int
	verbose  bool
}

// detection is the printed result.
type detection struct {
	FilePath   string   `json:"file_path" yaml:"file_path"`
	TotalPages int      `json:"total_pages" yaml:"total_pages"`
	Fields     []string `json:"fields" yaml:"fields"`
	Queryable  []string `json:"queryable" yaml:"queryable"`
	Discovered []string `json:"discovered" yaml:"discovered"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := options{}
	fs := pflag.NewFlagSet("pdf_detect_fields", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.format, "format", "text", "Output format: text, json, yaml")
	fs.StringSliceVar(&opts.fields, "fields", extract.DefaultFields, "Field vocabulary used to mark queryable labels")
	fs.BoolVar(&opts.ocr, "ocr", true, "Read scanned pages with tesseract")
	fs.StringVar(&opts.ocrLang, "ocr-lang", extract.DefaultOCRLanguage, "Tesseract language")
	fs.StringVar(&opts.pdftoppm, "pdftoppm", "pdftoppm", "pdftoppm binary used to render pages")
	fs.IntVar(&opts.dpi, "dpi", extract.DefaultDPI, "Render resolution for OCR")
	fs.IntVar(&opts.workers, "workers", 1, "Pages processed in parallel")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "USAGE:\n  pdf_detect_fields [OPTIONS] <pdf_file>\n\nOPTIONS:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEXAMPLES:\n  pdf_detect_fields certs.pdf\n  pdf_detect_fields --format json --ocr=false certs.pdf\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: exactly one PDF file path required\n\n")
		fs.Usage()
		return 1
	}
	if opts.format != "text" && opts.format != "json" && opts.format != "yaml" {
		fmt.Fprintf(stderr, "Error: unsupported output format: %s\n", opts.format)
		return 1
	}

	result, err := detect(ctx, fs.Arg(0), opts, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error detecting fields: %v\n", err)
		return 1
	}
	if err := output(stdout, opts.format, result); err != nil {
		fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
		return 1
	}
	return 0
}

func detect(ctx context.Context, path string, opts options, stderr io.Writer) (*detection, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	vocab, err := extract.NewVocabulary(opts.fields, nil)
	if err != nil {
		return nil, err
	}
	cfg := pdf.ServiceConfig{
		MaxFileSize: 1 << 30,
		Directory:   filepath.Dir(abs),
		Vocabulary:  vocab,
		DPI:         opts.dpi,
		Workers:     opts.workers,
		Pdftoppm:    opts.pdftoppm,
		Logger:      logger,
	}
	if opts.ocr && ocr.Available() {
		cfg.OCR = ocr.NewTesseractEngine(ocr.WithLanguages(strings.Split(opts.ocrLang, "+")...), ocr.WithLogger(logger))
	} else if opts.ocr {
		logger.Warn("tesseract not found, scanned pages are skipped")
	}

	svc, err := pdf.NewService(cfg)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	res, err := svc.DetectFields(ctx, pdf.PDFDetectFieldsRequest{Path: abs})
	if err != nil {
		return nil, err
	}

	d := &detection{
		FilePath:   res.FilePath,
		TotalPages: res.TotalPages,
		Fields:     res.Fields,
		Queryable:  []string{},
		Discovered: []string{},
	}
	for _, f := range res.Fields {
		if vocab.Contains(f) {
			d.Queryable = append(d.Queryable, f)
		} else {
			d.Discovered = append(d.Discovered, f)
		}
	}
	return d, nil
}

func output(w io.Writer, format string, d *detection) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	default:
		return outputText(w, d)
	}
}

func outputText(w io.Writer, d *detection) error {
	fmt.Fprintf(w, "%s (%d pages)\n", d.FilePath, d.TotalPages)
	if len(d.Fields) == 0 {
		fmt.Fprintln(w, "⚠️  No \"LABEL: value\" fields detected")
		return nil
	}

	fmt.Fprintf(w, "✅ Found %d field labels\n\n", len(d.Fields))
	for _, f := range d.Queryable {
		fmt.Fprintf(w, "  %s\n", f)
	}
	for _, f := range d.Discovered {
		fmt.Fprintf(w, "  %s (not in vocabulary, query with --discover)\n", f)
	}
	return nil
}

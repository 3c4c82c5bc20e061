// Package ocr recognises text in rendered page images.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
)

// Engine recognises text in a PNG page image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, dpi int) (string, error)
}

// DefaultLanguage is the tesseract language model used when none is set.
const DefaultLanguage = extract.DefaultOCRLanguage

// TesseractEngine implements Engine with libtesseract through gosseract.
// A fresh client is created per call since clients are not safe for
// concurrent use.
type TesseractEngine struct {
	clientFactory  func() *gosseract.Client
	languages      []string
	tessdataPrefix string
	pageSegMode    gosseract.PageSegMode
	logger         *slog.Logger
}

// Option configures a TesseractEngine.
type Option func(*TesseractEngine)

// WithLanguages sets the tesseract language models.
func WithLanguages(langs ...string) Option {
	return func(e *TesseractEngine) {
		if len(langs) > 0 {
			e.languages = langs
		}
	}
}

// WithTessdataPrefix points tesseract at a tessdata directory.
func WithTessdataPrefix(dir string) Option {
	return func(e *TesseractEngine) { e.tessdataPrefix = dir }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *TesseractEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine.
func NewTesseractEngine(opts ...Option) *TesseractEngine {
	e := &TesseractEngine{
		clientFactory: gosseract.NewClient,
		languages:     []string{DefaultLanguage},
		pageSegMode:   gosseract.PSM_AUTO,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs OCR over a single page image.
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, dpi int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}

	start := time.Now()
	c := e.clientFactory()
	defer c.Close()

	if e.tessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return "", fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(e.pageSegMode); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(dpi)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}

	e.logger.Debug("ocr ok",
		"engine", e.Name(),
		"languages", strings.Join(e.languages, "+"),
		"dpi", dpi,
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(text), nil
}

// Available reports whether a tesseract installation is on PATH.
func Available() bool {
	_, err := exec.LookPath("tesseract")
	return err == nil
}

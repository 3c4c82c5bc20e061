package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	pdferrors "github.com/a3tai/pdf-field-extractor/internal/pdf/errors"
)

const (
	// DefaultMinTextLength is the trimmed length below which direct text is
	// treated as missing and OCR is attempted.
	DefaultMinTextLength = 20
	// DefaultDPI is the rasterisation resolution used for OCR.
	DefaultDPI = 300
	// DefaultOCRLanguage is the tesseract language model used when none is set.
	DefaultOCRLanguage = "eng"
)

// Recognizer turns a rendered page image into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, dpi int) (string, error)
}

// Resolver produces the best available text for a page.
type Resolver struct {
	ocr           Recognizer
	minTextLength int
	dpi           int
	cache         *PageCache
	logger        *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithMinTextLength overrides DefaultMinTextLength.
func WithMinTextLength(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.minTextLength = n
		}
	}
}

// WithDPI overrides DefaultDPI.
func WithDPI(dpi int) ResolverOption {
	return func(r *Resolver) {
		if dpi > 0 {
			r.dpi = dpi
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver returns a Resolver. A nil recognizer disables the OCR fallback.
func NewResolver(ocr Recognizer, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		ocr:           ocr,
		minTextLength: DefaultMinTextLength,
		dpi:           DefaultDPI,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WithCache returns a copy of r that reuses pages held in c. Failed
// resolutions are not cached. A nil c disables reuse.
func (r *Resolver) WithCache(c *PageCache) *Resolver {
	cp := *r
	cp.cache = c
	return &cp
}

// Resolve never fails. Pages for which no path produced text come back
// empty with Failure set.
func (r *Resolver) Resolve(ctx context.Context, doc Document, index int) Page {
	if r.cache == nil {
		return r.resolve(ctx, doc, index)
	}

	key := pageKey(doc.Path(), index, r.dpi)
	if page, ok := r.cache.Get(key); ok {
		return page
	}
	page := r.resolve(ctx, doc, index)
	if page.Failure == nil && ctx.Err() == nil {
		r.cache.Put(key, page)
	}
	return page
}

func (r *Resolver) resolve(ctx context.Context, doc Document, index int) Page {
	page := Page{Index: index, Source: SourceNone}

	text, err := directText(doc, index)
	if err != nil {
		r.logger.Debug("direct text extraction failed", "path", doc.Path(), "page", index+1, "error", err)
	} else if len(strings.TrimSpace(text)) >= r.minTextLength {
		page.Text = text
		page.Source = SourceDirect
		return page
	}

	if r.ocr == nil {
		if err == nil && strings.TrimSpace(text) != "" {
			page.Text = text
			page.Source = SourceDirect
			return page
		}
		page.Failure = pdferrors.PageResolution(doc.Path(), index+1, err).WithContext("ocr disabled")
		return page
	}

	ocrText, ocrErr := r.recognize(ctx, doc, index)
	if ocrErr != nil {
		r.logger.Warn("ocr fallback failed", "path", doc.Path(), "page", index+1, "error", ocrErr)
		page.Failure = pdferrors.PageResolution(doc.Path(), index+1, ocrErr).WithContext("ocr")
		return page
	}

	page.Text = ocrText
	page.Source = SourceOCR
	r.logger.Debug("page resolved by ocr", "path", doc.Path(), "page", index+1, "chars", len(ocrText))
	return page
}

func (r *Resolver) recognize(ctx context.Context, doc Document, index int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("ocr panic: %v", p)
		}
	}()

	img, err := doc.RenderPage(ctx, index, r.dpi)
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	if len(img) == 0 {
		return "", fmt.Errorf("render page: no image produced")
	}
	return r.ocr.Recognize(ctx, img, r.dpi)
}

// directText shields callers from panics inside the PDF library.
func directText(doc Document, index int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("text extraction panic: %v", p)
		}
	}()
	return doc.PageText(index)
}

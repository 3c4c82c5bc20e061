package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
	pdferrors "github.com/a3tai/pdf-field-extractor/internal/pdf/errors"
)

// Reader opens PDF files as page-addressable documents.
type Reader struct {
	validator  *Validator
	rasterizer *Rasterizer
	logger     *slog.Logger
}

// NewReader creates a new PDF reader with the specified constraints
func NewReader(maxFileSize int64, rasterizer *Rasterizer, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if rasterizer == nil {
		rasterizer = NewRasterizer("", nil, logger)
	}
	return &Reader{
		validator:  NewValidator(maxFileSize),
		rasterizer: rasterizer,
		logger:     logger,
	}
}

// Open validates and opens the PDF at path. The caller must Close it.
func (r *Reader) Open(path string) (*FileDocument, error) {
	fileInfo, err := r.validator.ValidateFile(path)
	if err != nil {
		return nil, err
	}

	f, pdfReader, err := openPDF(path)
	if err != nil {
		return nil, pdferrors.DocumentUnreadable(path, "failed to open PDF", err)
	}

	doc := &FileDocument{
		path:       path,
		file:       f,
		reader:     pdfReader,
		pages:      pdfReader.NumPage(),
		rasterizer: r.rasterizer,
	}
	r.logger.Debug("pdf opened", "path", path, "pages", doc.pages, "size", fileInfo.Size())
	return doc, nil
}

// openPDF shields callers from panics on malformed trailers.
func openPDF(path string) (f *os.File, rd *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			if f != nil {
				f.Close()
			}
			f, rd, err = nil, nil, fmt.Errorf("parser panic: %v", p)
		}
	}()
	return pdf.Open(path)
}

// FileDocument is an open PDF file. It implements extract.Document.
type FileDocument struct {
	path       string
	file       *os.File
	pages      int
	rasterizer *Rasterizer

	mu     sync.Mutex
	reader *pdf.Reader
}

var _ extract.Document = (*FileDocument)(nil)

func (d *FileDocument) Path() string   { return d.path }
func (d *FileDocument) PageCount() int { return d.pages }

// PageText returns the direct text of a 0-based page, one line per text row
// from top to bottom.
func (d *FileDocument) PageText(index int) (string, error) {
	if index < 0 || index >= d.pages {
		return "", fmt.Errorf("page index %d out of range [0, %d)", index, d.pages)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return "", nil
	}

	texts, err := pageTexts(page)
	if err == nil {
		return joinLines(texts), nil
	}

	text, plainErr := page.GetPlainText(nil)
	if plainErr != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}

// pageTexts returns the positioned glyphs of page. The content parser panics
// on some malformed streams.
func pageTexts(page pdf.Page) (texts []pdf.Text, err error) {
	defer func() {
		if p := recover(); p != nil {
			texts, err = nil, fmt.Errorf("content panic: %v", p)
		}
	}()
	return page.Content().Text, nil
}

// lineTolerance is the largest baseline shift, in points, still read as the
// same line.
const lineTolerance = 2.0

// joinLines groups glyphs into lines by baseline, top to bottom, orders each
// line left to right and joins the lines with '\n'.
func joinLines(texts []pdf.Text) string {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var (
		lines [][]pdf.Text
		lineY float64
	)
	for _, t := range sorted {
		if t.S == "\n" || t.S == "\r" {
			continue
		}
		if len(lines) == 0 || lineY-t.Y > lineTolerance {
			lines = append(lines, nil)
			lineY = t.Y
		}
		lines[len(lines)-1] = append(lines[len(lines)-1], t)
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		sort.SliceStable(line, func(a, c int) bool { return line[a].X < line[c].X })
		for _, t := range line {
			b.WriteString(t.S)
		}
	}
	return b.String()
}

// RenderPage rasterises a 0-based page to PNG.
func (d *FileDocument) RenderPage(ctx context.Context, index, dpi int) ([]byte, error) {
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, d.pages)
	}
	return d.rasterizer.Render(ctx, d.path, index+1, dpi)
}

// Close releases the underlying file.
func (d *FileDocument) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

package pdf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	pdferrors "github.com/a3tai/pdf-field-extractor/internal/pdf/errors"
)

// SubsetWriter copies selected pages of a PDF into a new file without
// touching their content.
type SubsetWriter struct {
	conf   *model.Configuration
	logger *slog.Logger
}

// NewSubsetWriter returns a SubsetWriter using pdfcpu in relaxed mode.
func NewSubsetWriter(logger *slog.Logger) *SubsetWriter {
	if logger == nil {
		logger = slog.Default()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &SubsetWriter{conf: conf, logger: logger}
}

// WritePages writes the 0-based pages of src, in the given order, to dst.
func (w *SubsetWriter) WritePages(src, dst string, pages []int) error {
	if len(pages) == 0 {
		return pdferrors.Output(dst, "no pages selected", nil)
	}

	total, err := api.PageCountFile(src)
	if err != nil {
		return pdferrors.DocumentUnreadable(src, "count pages", err)
	}

	selected := make([]string, len(pages))
	for i, p := range pages {
		if p < 0 || p >= total {
			return pdferrors.Output(dst, fmt.Sprintf("page index %d out of range [0, %d)", p, total), nil)
		}
		selected[i] = strconv.Itoa(p + 1)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return pdferrors.Output(dst, "create output directory", err)
	}
	if err := api.CollectFile(src, dst, selected, w.conf); err != nil {
		return pdferrors.Output(dst, "write page subset", err)
	}

	w.logger.Debug("page subset written", "src", src, "dst", dst, "pages", len(pages))
	return nil
}

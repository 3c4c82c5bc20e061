package pdf

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/pdf-field-extractor/internal/pdf/errors"
	"github.com/a3tai/pdf-field-extractor/internal/pdf/pdftest"
)

func TestSubsetWriter_WritePages(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "src.pdf", "PAGE ONE HEAT NO: H1", "PAGE TWO HEAT NO: H2", "PAGE THREE HEAT NO: H3")
	dst := filepath.Join(dir, "out", "subset.pdf")

	w := NewSubsetWriter(nil)
	require.NoError(t, w.WritePages(src, dst, []int{0, 2}))

	doc, err := NewReader(0, nil, nil).Open(dst)
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 2, doc.PageCount())
	first, err := doc.PageText(0)
	require.NoError(t, err)
	assert.Contains(t, first, "PAGE ONE")
	second, err := doc.PageText(1)
	require.NoError(t, err)
	assert.Contains(t, second, "PAGE THREE")
}

func TestSubsetWriter_Errors(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "src.pdf", "only page")
	w := NewSubsetWriter(nil)

	err := w.WritePages(src, filepath.Join(dir, "a.pdf"), nil)
	assert.True(t, errors.Is(err, pdferrors.ErrOutput))

	err = w.WritePages(src, filepath.Join(dir, "b.pdf"), []int{1})
	assert.True(t, errors.Is(err, pdferrors.ErrOutput))

	err = w.WritePages(filepath.Join(dir, "missing.pdf"), filepath.Join(dir, "c.pdf"), []int{0})
	assert.True(t, errors.Is(err, pdferrors.ErrDocumentUnreadable))
}

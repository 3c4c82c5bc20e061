package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
	"github.com/a3tai/pdf-field-extractor/internal/summary"
)

type pageCall struct {
	src, dst string
	pages    []int
}

type fakePageWriter struct {
	mu    sync.Mutex
	calls []pageCall
	err   error
}

func (f *fakePageWriter) WritePages(src, dst string, pages []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, pageCall{src: src, dst: dst, pages: append([]int(nil), pages...)})
	return os.WriteFile(dst, []byte("%PDF-1.4\n"), 0o600)
}

type fakeRecorder struct {
	outputDir string
	fields    []string
}

func (f *fakeRecorder) Record(_ context.Context, _ *extract.ExtractionResult, fields []string, outputDir string) (string, error) {
	f.outputDir = outputDir
	f.fields = fields
	return "run-42", nil
}

var fields = []string{"HEAT NO", "PLATE NO"}

func record(t *testing.T, page int, text string) extract.FieldRecord {
	t.Helper()
	fe, err := extract.NewFieldExtractor(extract.Vocabulary{
		{Name: "HEAT NO", Pattern: extract.LabelPattern("HEAT NO")},
		{Name: "PLATE NO", Pattern: extract.LabelPattern("PLATE NO")},
	})
	require.NoError(t, err)
	rec := fe.Extract(text)
	rec.Page = page
	return rec
}

func matched(t *testing.T) *extract.ExtractionResult {
	return &extract.ExtractionResult{
		Query:      extract.Query{Field: "Heat No", Value: "AB/123", Mode: extract.MatchField},
		Source:     "/in/certs.pdf",
		TotalPages: 5,
		Pages:      []int{0, 3, 4},
		Records: []extract.FieldRecord{
			record(t, 0, "HEAT NO: AB/123 PLATE NO: P1"),
			record(t, 3, "HEAT NO: AB/123 PLATE NO: P1"),
			record(t, 4, "nothing here"),
		},
		Count:   3,
		Outcome: extract.OutcomeMatched,
	}
}

func TestNaming(t *testing.T) {
	tests := []struct {
		name     string
		q        extract.Query
		folder   string
		combined string
	}{
		{"field", extract.Query{Field: "HEAT NO", Value: "AB/123"}, "HEATNO_AB-123", "heatno-AB-123.pdf"},
		{"field_case_spacing", extract.Query{Field: " flange  no ", Value: "F-9"}, "FLANGENO_F-9", "flangeno-F-9.pdf"},
		{"backslash", extract.Query{Field: "GRADE", Value: `S355\J2`}, "GRADE_S355-J2", "grade-S355-J2.pdf"},
		{"free_text", extract.Query{Value: "ACME STEEL", Mode: extract.MatchText}, "MATCH_ACME STEEL", "match-ACME STEEL.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.folder, FolderName(tt.q))
			assert.Equal(t, tt.combined, CombinedName(tt.q))
		})
	}
}

func TestSplitName(t *testing.T) {
	assert.Equal(t, "H-1_P1.pdf", SplitName(record(t, 0, "HEAT NO: H-1 PLATE NO: P1"), fields))
	assert.Equal(t, "H1_NA.pdf", SplitName(record(t, 0, "HEAT NO: H1"), fields))
	assert.Equal(t, "page-8.pdf", SplitName(record(t, 7, "blank"), fields))
}

func TestPublisher_Publish(t *testing.T) {
	root := t.TempDir()
	pw := &fakePageWriter{}
	rec := &fakeRecorder{}
	p := NewPublisher(root, pw, WithSplit(true), WithRecorder(rec))

	res := matched(t)
	art, err := p.Publish(context.Background(), res, fields)
	require.NoError(t, err)
	require.NotNil(t, art)

	wantDir := filepath.Join(root, "HEATNO_AB-123")
	assert.Equal(t, wantDir, art.Dir)
	assert.Equal(t, filepath.Join(wantDir, "heatno-AB-123.pdf"), art.Combined)
	assert.Equal(t, "run-42", art.RunID)
	assert.Equal(t, wantDir, rec.outputDir)

	require.Len(t, pw.calls, 4)
	assert.Equal(t, pageCall{src: "/in/certs.pdf", dst: art.Combined, pages: []int{0, 3, 4}}, pw.calls[0])

	assert.Equal(t, []string{
		filepath.Join(wantDir, "AB-123_P1.pdf"),
		filepath.Join(wantDir, "AB-123_P1_p4.pdf"),
		filepath.Join(wantDir, "page-5.pdf"),
	}, art.Split)
	for i, f := range art.Split {
		assert.FileExists(t, f)
		assert.Equal(t, []int{res.Pages[i]}, pw.calls[i+1].pages)
	}

	wb, err := excelize.OpenFile(art.Summary)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(summary.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, []string{"5", "NA", "NA"}, rows[3])

	data, err := os.ReadFile(art.Report)
	require.NoError(t, err)
	var report summary.Report
	require.NoError(t, yaml.Unmarshal(data, &report))
	assert.Equal(t, "run-42", report.RunID)
	assert.Equal(t, []int{1, 4, 5}, report.Pages)
	assert.Equal(t, "heatno-AB-123.pdf", report.Artifacts["combined"])
	assert.Equal(t, "3 files", report.Artifacts["split"])
}

func TestPublisher_NoMatchesWritesNothing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	pw := &fakePageWriter{}
	p := NewPublisher(root, pw, WithSplit(true))

	res := &extract.ExtractionResult{
		Query:   extract.Query{Field: "HEAT NO", Value: "ZZZ"},
		Pages:   []int{},
		Outcome: extract.OutcomeNoMatches,
	}
	art, err := p.Publish(context.Background(), res, fields)
	require.NoError(t, err)
	assert.Nil(t, art)
	assert.Empty(t, pw.calls)
	assert.NoDirExists(t, root)
}

func TestPublisher_Errors(t *testing.T) {
	boom := errors.New("disk full")
	p := NewPublisher(t.TempDir(), &fakePageWriter{err: boom})
	_, err := p.Publish(context.Background(), matched(t), fields)
	assert.ErrorIs(t, err, boom)

	p = NewPublisher(t.TempDir(), nil)
	_, err = p.Publish(context.Background(), matched(t), fields)
	assert.Error(t, err)
}

func TestPublisher_SplitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pw := &fakePageWriter{}
	p := NewPublisher(t.TempDir(), pw, WithSplit(true))
	_, err := p.Publish(ctx, matched(t), fields)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, pw.calls, 1)
}

package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/pdf-field-extractor/internal/pdf/errors"
)

const filler = "\nMILL TEST CERTIFICATE EN 10204 3.1"

func defaultExtractor(t *testing.T) *FieldExtractor {
	t.Helper()
	fe, err := NewFieldExtractor(DefaultVocabulary())
	require.NoError(t, err)
	return fe
}

func TestOrchestrator_SingleMatch(t *testing.T) {
	doc := newFakeDoc(
		"PLATE NO: P1"+filler,
		"HEAT NO: H123-A"+filler,
		"PLATE NO: P3"+filler,
	)
	o := NewOrchestrator(NewResolver(&fakeOCR{}))

	res, err := o.Extract(context.Background(), doc, Query{Field: "HEAT NO", Value: "H123", Mode: MatchField}, defaultExtractor(t))
	require.NoError(t, err)

	assert.Equal(t, OutcomeMatched, res.Outcome)
	assert.Equal(t, []int{1}, res.Pages)
	assert.Equal(t, []int{2}, res.DisplayPages())
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 3, res.TotalPages)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, 1, rec.Page)
	assert.Equal(t, "H123-A", rec.Get("HEAT NO"))
	for _, f := range DefaultFields {
		if f != "HEAT NO" {
			assert.Equal(t, NotAvailable, rec.Get(f), f)
		}
	}
	assert.Empty(t, res.OCRPages)
}

func TestOrchestrator_NoMatches(t *testing.T) {
	doc := newFakeDoc("HEAT NO: H1"+filler, "HEAT NO: H2"+filler)
	o := NewOrchestrator(NewResolver(&fakeOCR{}))

	res, err := o.Extract(context.Background(), doc, Query{Value: "ZZZ", Mode: MatchText}, defaultExtractor(t))
	require.NoError(t, err)
	assert.True(t, res.NoMatches())
	assert.Empty(t, res.Pages)
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Count)
}

func TestOrchestrator_MatchViaOCR(t *testing.T) {
	doc := newFakeDoc("PLATE NO: P-1"+filler, "")
	doc.ocrTexts[1] = "PLATE NO : P-9"
	o := NewOrchestrator(NewResolver(&fakeOCR{}))

	res, err := o.Extract(context.Background(), doc, Query{Field: "PLATE NO", Value: "p-9", Mode: MatchField}, defaultExtractor(t))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Pages)
	assert.Equal(t, []int{1}, res.OCRPages)
	assert.Equal(t, "P-9", res.Records[0].Get("PLATE NO"))
}

func TestOrchestrator_PageFailuresDoNotAbort(t *testing.T) {
	doc := newFakeDoc("HEAT NO: H1"+filler, "", "HEAT NO: H1"+filler)
	doc.renderErr[1] = errors.New("render failed")
	o := NewOrchestrator(NewResolver(&fakeOCR{}))

	res, err := o.Extract(context.Background(), doc, Query{Value: "h1", Mode: MatchLine}, defaultExtractor(t))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, res.Pages)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 2, res.Failures[0].PageNumber)
	assert.Equal(t, "fake.pdf", res.Failures[0].FilePath)
}

func TestOrchestrator_InvalidQueryDoesNoWork(t *testing.T) {
	doc := newFakeDoc("", "")
	ocr := &fakeOCR{}
	o := NewOrchestrator(NewResolver(ocr))

	_, err := o.Extract(context.Background(), doc, Query{Field: "HEAT NO", Value: "   "}, defaultExtractor(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, pdferrors.ErrInvalidQuery))
	assert.Zero(t, ocr.calls.Load())
	assert.Zero(t, doc.renderCount())
}

func TestOrchestrator_ParallelKeepsAscendingOrder(t *testing.T) {
	texts := make([]string, 60)
	for i := range texts {
		if i%3 == 0 {
			texts[i] = fmt.Sprintf("HEAT NO: H77 PLATE NO: P%d%s", i, filler)
		} else {
			texts[i] = fmt.Sprintf("HEAT NO: H%d%s", i+100, filler)
		}
	}
	// Short pages go through OCR, which keeps workers busy unevenly.
	for i := 1; i < len(texts); i += 7 {
		texts[i] = ""
	}
	doc := newFakeDoc(texts...)
	for i := 1; i < len(texts); i += 7 {
		doc.ocrTexts[i] = "HEAT NO: H77"
	}

	q := Query{Field: "HEAT NO", Value: "H77", Mode: MatchField}
	serial, err := NewOrchestrator(NewResolver(&fakeOCR{})).Extract(context.Background(), doc, q, defaultExtractor(t))
	require.NoError(t, err)
	parallel, err := NewOrchestrator(NewResolver(&fakeOCR{}), WithWorkers(8)).Extract(context.Background(), doc, q, defaultExtractor(t))
	require.NoError(t, err)

	for i := 1; i < len(parallel.Pages); i++ {
		assert.Less(t, parallel.Pages[i-1], parallel.Pages[i])
	}
	for _, p := range parallel.Pages {
		assert.Less(t, p, doc.PageCount())
	}
	assert.Equal(t, serial.Pages, parallel.Pages)
	assert.Equal(t, serial.Records, parallel.Records)
	assert.Equal(t, serial.OCRPages, parallel.OCRPages)
	for i, rec := range parallel.Records {
		assert.Equal(t, parallel.Pages[i], rec.Page)
	}
}

func TestOrchestrator_Idempotent(t *testing.T) {
	doc := newFakeDoc("HEAT NO: H1"+filler, "PLATE NO: H1"+filler, "HEAT NO: X"+filler)
	o := NewOrchestrator(NewResolver(&fakeOCR{}), WithWorkers(2))
	q := Query{Value: "h1", Mode: MatchText}

	first, err := o.Extract(context.Background(), doc, q, defaultExtractor(t))
	require.NoError(t, err)
	second, err := o.Extract(context.Background(), doc, q, defaultExtractor(t))
	require.NoError(t, err)

	assert.Equal(t, first.Pages, second.Pages)
	assert.Equal(t, first.Records, second.Records)
}

func TestOrchestrator_CancelledBeforeStart(t *testing.T) {
	doc := newFakeDoc("HEAT NO: H1"+filler, "HEAT NO: H1"+filler)
	ocr := &fakeOCR{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewOrchestrator(NewResolver(ocr)).Extract(ctx, doc, Query{Value: "H1", Mode: MatchText}, defaultExtractor(t))
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOrchestrator_CancelBetweenPages(t *testing.T) {
	texts := make([]string, 50)
	for i := range texts {
		texts[i] = "HEAT NO: H1" + filler
	}
	doc := newFakeDoc(texts...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen int
	)
	ex := extractorFunc(func(text string) FieldRecord {
		mu.Lock()
		defer mu.Unlock()
		seen++
		if seen == 3 {
			cancel()
		}
		return FieldRecord{Values: map[string]string{}}
	})

	res, err := NewOrchestrator(NewResolver(nil)).Extract(ctx, doc, Query{Value: "H1", Mode: MatchText}, ex)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, seen)
}

func TestOrchestrator_Progress(t *testing.T) {
	doc := newFakeDoc("HEAT NO: H1"+filler, "x", "HEAT NO: H2"+filler, "y")
	var (
		mu    sync.Mutex
		ticks [][2]int
	)
	o := NewOrchestrator(NewResolver(nil), WithProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, [2]int{done, total})
	}))

	_, err := o.Extract(context.Background(), doc, Query{Value: "H1", Mode: MatchText}, defaultExtractor(t))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) == 4
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][2]int{{1, 4}, {2, 4}, {3, 4}, {4, 4}}, ticks)
}

func TestOrchestrator_ProgressNeverBlocksOrBreaksResult(t *testing.T) {
	doc := newFakeDoc("HEAT NO: H1"+filler, "HEAT NO: H1"+filler, "HEAT NO: H1"+filler)
	release := make(chan struct{})
	defer close(release)

	o := NewOrchestrator(NewResolver(nil), WithProgress(func(done, _ int) {
		if done == 1 {
			<-release
		}
		panic("observer bug")
	}))

	done := make(chan struct{})
	var res *ExtractionResult
	go func() {
		defer close(done)
		var err error
		res, err = o.Extract(context.Background(), doc, Query{Value: "H1", Mode: MatchText}, defaultExtractor(t))
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("extraction blocked on progress observer")
	}
	assert.Equal(t, []int{0, 1, 2}, res.Pages)
}

func TestOrchestrator_Discover(t *testing.T) {
	doc := newFakeDoc("FLANGE NO : F1\nHEAT NO : H1\n"+filler, "")
	doc.ocrTexts[1] = "GRADE : 316L\nHEAT NO: H2"

	labels, err := NewOrchestrator(NewResolver(&fakeOCR{}), WithWorkers(2)).Discover(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"FLANGE NO", "GRADE", "HEAT NO"}, labels)
}

func TestOrchestrator_DiscoverThenExtract(t *testing.T) {
	doc := newFakeDoc("GRADE : 316L\nHEAT NO: H1"+filler, "GRADE : 304\nHEAT NO: H2"+filler)
	o := NewOrchestrator(NewResolver(nil))

	labels, err := o.Discover(context.Background(), doc)
	require.NoError(t, err)
	require.Contains(t, labels, "GRADE")

	ex, err := NewDiscoveryExtractor("GRADE")
	require.NoError(t, err)
	res, err := o.Extract(context.Background(), doc, Query{Field: "GRADE", Value: "304"}, ex)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Pages)
	assert.Equal(t, []string{"GRADE"}, res.Records[0].Keys())
	assert.Equal(t, "304", res.Records[0].Get("GRADE"))
}

func TestOrchestrator_EmptyDocument(t *testing.T) {
	res, err := NewOrchestrator(nil).Extract(context.Background(), newFakeDoc(), Query{Value: "x", Mode: MatchText}, defaultExtractor(t))
	require.NoError(t, err)
	assert.True(t, res.NoMatches())
	assert.Zero(t, res.TotalPages)
}

type extractorFunc func(text string) FieldRecord

func (f extractorFunc) Fields() []string { return nil }
func (f extractorFunc) Extract(text string) FieldRecord { return f(text) }

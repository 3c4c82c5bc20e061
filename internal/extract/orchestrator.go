package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	pdferrors "github.com/a3tai/pdf-field-extractor/internal/pdf/errors"
)

// RecordExtractor turns matched page text into a FieldRecord.
type RecordExtractor interface {
	Fields() []string
	Extract(text string) FieldRecord
}

// ProgressFunc receives (pages done, total pages) after each page.
type ProgressFunc func(done, total int)

// Orchestrator runs resolution, matching and extraction over a document.
type Orchestrator struct {
	resolver *Resolver
	workers  int
	progress ProgressFunc
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers bounds how many pages are processed concurrently.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithProgress registers an observer. Notifications are delivered on a
// separate goroutine and never delay page processing.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator returns an Orchestrator using resolver for page text.
func NewOrchestrator(resolver *Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver: resolver,
		workers:  1,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = NewResolver(nil, WithResolverLogger(o.logger))
	}
	return o
}

type pageSlot struct {
	source  TextSource
	matched bool
	record  FieldRecord
}

// Extract returns the pages of doc matching q, in ascending order, with a
// record per matched page. An empty match set is reported through
// OutcomeNoMatches, not an error. A cancelled ctx stops work at the next
// page boundary and no partial result is returned.
func (o *Orchestrator) Extract(ctx context.Context, doc Document, q Query, ex RecordExtractor) (*ExtractionResult, error) {
	if doc == nil {
		return nil, errors.New("document is required")
	}
	if ex == nil {
		return nil, errors.New("record extractor is required")
	}
	matcher, err := NewMatcher(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	total := doc.PageCount()
	slots := make([]pageSlot, total)
	failures := pdferrors.NewErrorCollection(doc.Path())
	notify, stop := o.startProgress(total)
	defer stop()

	err = o.forEachPage(ctx, total, func(i int) {
		page := o.resolver.Resolve(ctx, doc, i)
		failures.Add(page.Failure)

		slot := pageSlot{source: page.Source}
		if matcher.Match(page.Text) {
			rec := ex.Extract(page.Text)
			rec.Page = i
			slot.matched = true
			slot.record = rec
		}
		slots[i] = slot
		notify()
	})
	if err != nil {
		return nil, fmt.Errorf("extraction stopped: %w", err)
	}

	result := &ExtractionResult{
		Query:      q,
		Source:     doc.Path(),
		TotalPages: total,
		Pages:      make([]int, 0),
		Records:    make([]FieldRecord, 0),
		OCRPages:   make([]int, 0),
		Failures:   sortedByPage(failures.Warnings),
	}
	for i, s := range slots {
		if s.source == SourceOCR {
			result.OCRPages = append(result.OCRPages, i)
		}
		if s.matched {
			result.Pages = append(result.Pages, i)
			result.Records = append(result.Records, s.record)
		}
	}
	result.Count = len(result.Pages)
	result.Outcome = OutcomeMatched
	if result.Count == 0 {
		result.Outcome = OutcomeNoMatches
	}

	o.logger.Info("extraction complete",
		"path", doc.Path(),
		"pages", total,
		"matched", result.Count,
		"ocr_pages", len(result.OCRPages),
		"failures", len(result.Failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Discover resolves every page of doc and returns the labels found.
func (o *Orchestrator) Discover(ctx context.Context, doc Document) ([]string, error) {
	if doc == nil {
		return nil, errors.New("document is required")
	}

	total := doc.PageCount()
	texts := make([]string, total)
	notify, stop := o.startProgress(total)
	defer stop()

	err := o.forEachPage(ctx, total, func(i int) {
		texts[i] = o.resolver.Resolve(ctx, doc, i).Text
		notify()
	})
	if err != nil {
		return nil, fmt.Errorf("discovery stopped: %w", err)
	}

	labels := DetectFields(texts)
	o.logger.Info("field discovery complete", "path", doc.Path(), "pages", total, "labels", len(labels))
	return labels, nil
}

// forEachPage runs fn for every page index with at most o.workers in flight.
// ctx is checked before each page starts.
func (o *Orchestrator) forEachPage(ctx context.Context, total int, fn func(i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for i := 0; i < total; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// startProgress returns a notify func that never blocks and a stop func
// that releases the delivery goroutine.
func (o *Orchestrator) startProgress(total int) (notify func(), stop func()) {
	if o.progress == nil || total == 0 {
		return func() {}, func() {}
	}

	type tick struct{ done, total int }
	ch := make(chan tick, total)
	go func() {
		for t := range ch {
			o.deliver(t.done, t.total)
		}
	}()

	var (
		mu   sync.Mutex
		done int
	)
	notify = func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		select {
		case ch <- tick{done: done, total: total}:
		default:
		}
	}
	stop = func() {
		mu.Lock()
		defer mu.Unlock()
		close(ch)
	}
	return notify, stop
}

func (o *Orchestrator) deliver(done, total int) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Warn("progress observer panicked", "panic", p)
		}
	}()
	o.progress(done, total)
}

func sortedByPage(errs []*pdferrors.PDFError) []*pdferrors.PDFError {
	out := append([]*pdferrors.PDFError(nil), errs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out
}

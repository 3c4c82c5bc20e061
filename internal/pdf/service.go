package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
	pdferrors "github.com/a3tai/pdf-field-extractor/internal/pdf/errors"
	"github.com/a3tai/pdf-field-extractor/internal/pdf/security"
	"github.com/a3tai/pdf-field-extractor/internal/output"
	"github.com/a3tai/pdf-field-extractor/internal/summary"
)

// DefaultOutputDirName is used below the confinement root when no output
// directory is configured.
const DefaultOutputDirName = "extracted"

// ServiceConfig wires the pipeline components.
type ServiceConfig struct {
	MaxFileSize int64
	// Directory confines input paths. Empty means the working directory.
	Directory string
	OutputDir string
	// Vocabulary defaults to extract.DefaultVocabulary.
	Vocabulary    extract.Vocabulary
	MinTextLength int
	DPI           int
	Workers       int
	// PageCacheSize bounds the pages kept for reuse within one request.
	// Zero means extract.DefaultPageCacheSize, negative disables reuse.
	PageCacheSize int
	// OCR is the fallback recognizer. Nil disables OCR.
	OCR      extract.Recognizer
	Pdftoppm string
	Runner   Runner
	Split    bool
	// LedgerPath enables the SQLite run ledger when set.
	LedgerPath string
	Logger     *slog.Logger
}

// Service handles PDF file operations by orchestrating the pipeline components
type Service struct {
	cfg           ServiceConfig
	vocab         extract.Vocabulary
	extractor     *extract.FieldExtractor
	resolver      *extract.Resolver
	reader        *Reader
	search        *Search
	subset        *SubsetWriter
	ledger        *summary.Ledger
	pathValidator *security.PathValidator
	info          *serverInfo
	logger        *slog.Logger
}

// NewService creates a new PDF service with all components
func NewService(cfg ServiceConfig) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir := cfg.Directory
	if dir == "" {
		dir = "."
	}
	pathValidator, err := security.NewPathValidator(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	vocab := cfg.Vocabulary
	if len(vocab) == 0 {
		vocab = extract.DefaultVocabulary()
	}
	extractor, err := extract.NewFieldExtractor(vocab)
	if err != nil {
		return nil, fmt.Errorf("invalid field vocabulary: %w", err)
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(pathValidator.Root(), DefaultOutputDirName)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	resolverOpts := []extract.ResolverOption{extract.WithResolverLogger(logger)}
	if cfg.MinTextLength > 0 {
		resolverOpts = append(resolverOpts, extract.WithMinTextLength(cfg.MinTextLength))
	}
	if cfg.DPI > 0 {
		resolverOpts = append(resolverOpts, extract.WithDPI(cfg.DPI))
	}

	s := &Service{
		cfg:           cfg,
		vocab:         vocab,
		extractor:     extractor,
		resolver:      extract.NewResolver(cfg.OCR, resolverOpts...),
		reader:        NewReader(cfg.MaxFileSize, NewRasterizer(cfg.Pdftoppm, cfg.Runner, logger), logger),
		search:        NewSearch(cfg.MaxFileSize),
		subset:        NewSubsetWriter(logger),
		pathValidator: pathValidator,
		logger:        logger,
	}
	s.info = newServerInfo(s)

	if cfg.LedgerPath != "" {
		ledger, err := summary.OpenLedger(cfg.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open run ledger: %w", err)
		}
		s.ledger = ledger
	}
	return s, nil
}

// Close releases the run ledger.
func (s *Service) Close() error {
	if s.ledger == nil {
		return nil
	}
	return s.ledger.Close()
}

// OutputDir returns the configured output root.
func (s *Service) OutputDir() string { return s.cfg.OutputDir }

// PDFSearchDirectory lists PDF files below a directory inside the root.
func (s *Service) PDFSearchDirectory(ctx context.Context, req PDFSearchDirectoryRequest) (*PDFSearchDirectoryResult, error) {
	if req.Directory == "" {
		req.Directory = s.pathValidator.Root()
	}
	dir, err := s.pathValidator.Resolve(req.Directory)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	req.Directory = dir
	return s.search.SearchDirectory(ctx, req)
}

// DetectFields returns the field labels found across every page.
func (s *Service) DetectFields(ctx context.Context, req PDFDetectFieldsRequest) (*PDFDetectFieldsResult, error) {
	doc, err := s.open(req.Path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	labels, err := s.orchestrator(nil, nil).Discover(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &PDFDetectFieldsResult{
		FilePath:   doc.Path(),
		TotalPages: doc.PageCount(),
		Fields:     labels,
		Vocabulary: s.vocab.Names(),
	}, nil
}

// FindPages runs the query and reports the matched pages. No files are written.
func (s *Service) FindPages(ctx context.Context, req PDFFindPagesRequest, progress extract.ProgressFunc) (*PDFFindPagesResult, error) {
	// Queries are rejected before the document is opened.
	q, err := s.query(req)
	if err != nil {
		return nil, err
	}

	doc, err := s.open(req.Path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var ex extract.RecordExtractor = s.extractor
	cache := s.runCache()
	if q.Mode == extract.MatchField && !s.vocab.Contains(q.Field) {
		// Discovery resolves every page; extraction reuses those pages.
		ex, err = s.discoveredExtractor(ctx, s.orchestrator(nil, cache), doc, q)
		if err != nil {
			return nil, err
		}
	}

	res, err := s.orchestrator(progress, cache).Extract(ctx, doc, q, ex)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		st := cache.Stats()
		s.logger.Debug("page reuse", "path", doc.Path(), "hits", st.Hits, "misses", st.Misses)
	}
	return newFindResult(res, ex.Fields()), nil
}

// ExtractByField runs the query and publishes the matched pages. Nothing is
// written when no page matches.
func (s *Service) ExtractByField(ctx context.Context, req PDFExtractByFieldRequest, progress extract.ProgressFunc) (*PDFExtractByFieldResult, error) {
	found, err := s.FindPages(ctx, req.PDFFindPagesRequest, progress)
	if err != nil {
		return nil, err
	}
	out := &PDFExtractByFieldResult{PDFFindPagesResult: *found}
	if found.Outcome == extract.OutcomeNoMatches {
		return out, nil
	}

	root := s.cfg.OutputDir
	if req.OutputDir != "" {
		root, err = filepath.Abs(req.OutputDir)
		if err != nil {
			return nil, pdferrors.Output(req.OutputDir, "resolve output directory", err)
		}
	}
	split := s.cfg.Split
	if req.Split != nil {
		split = *req.Split
	}

	opts := []output.PublisherOption{output.WithSplit(split), output.WithPublisherLogger(s.logger)}
	if s.ledger != nil {
		opts = append(opts, output.WithRecorder(s.ledger))
	}
	art, err := output.NewPublisher(root, s.subset, opts...).Publish(ctx, found.Result(), found.Fields)
	if err != nil {
		return nil, err
	}
	out.Artifacts = art
	return out, nil
}

// PDFServerInfo returns server information and usage guidance.
func (s *Service) PDFServerInfo(ctx context.Context, _ PDFServerInfoRequest, serverName, version string) (*PDFServerInfoResult, error) {
	return s.info.get(ctx, serverName, version)
}

func (s *Service) query(req PDFFindPagesRequest) (extract.Query, error) {
	mode, err := extract.ParseMatchMode(req.Match)
	if err != nil {
		return extract.Query{}, err
	}
	q := extract.Query{Field: extract.NormalizeLabel(req.Field), Value: req.Value, Mode: mode}

	vocab := s.vocab
	if req.Discover {
		// Membership is checked against the document instead.
		vocab = nil
	}
	if err := q.Validate(vocab); err != nil {
		return extract.Query{}, err
	}
	return q, nil
}

// discoveredExtractor accepts a field outside the vocabulary when the
// document carries it as a label.
func (s *Service) discoveredExtractor(ctx context.Context, orch *extract.Orchestrator, doc *FileDocument, q extract.Query) (extract.RecordExtractor, error) {
	labels, err := orch.Discover(ctx, doc)
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		if l == q.Field {
			return extract.NewDiscoveryExtractor(q.Field)
		}
	}
	return nil, pdferrors.InvalidQuery("field %q is neither in the vocabulary %v nor detected in %s",
		q.Field, s.vocab.Names(), filepath.Base(doc.Path())).WithFile(doc.Path())
}

func (s *Service) open(path string) (*FileDocument, error) {
	resolved, err := s.pathValidator.Resolve(path)
	if err != nil {
		if errors.Is(err, security.ErrOutsideRoot) {
			return nil, fmt.Errorf("security validation failed: %w", err)
		}
		return nil, pdferrors.DocumentUnreadable(path, "invalid path", err)
	}
	return s.reader.Open(resolved)
}

// runCache returns a page cache scoped to one request, or nil when reuse is
// disabled.
func (s *Service) runCache() *extract.PageCache {
	if s.cfg.PageCacheSize < 0 {
		return nil
	}
	return extract.NewPageCache(s.cfg.PageCacheSize)
}

func (s *Service) orchestrator(progress extract.ProgressFunc, cache *extract.PageCache) *extract.Orchestrator {
	return extract.NewOrchestrator(s.resolver.WithCache(cache),
		extract.WithWorkers(s.cfg.Workers),
		extract.WithProgress(progress),
		extract.WithLogger(s.logger),
	)
}

func newFindResult(res *extract.ExtractionResult, fields []string) *PDFFindPagesResult {
	out := &PDFFindPagesResult{
		FilePath:   res.Source,
		Query:      res.Query,
		Outcome:    res.Outcome,
		TotalPages: res.TotalPages,
		Pages:      res.DisplayPages(),
		Fields:     fields,
		Records:    make([]PageRecord, 0, len(res.Records)),
		OCRPages:   make([]int, 0, len(res.OCRPages)),
		result:     res,
	}
	for _, rec := range res.Records {
		values := make(map[string]string, len(fields))
		for _, f := range fields {
			values[f] = rec.Get(f)
		}
		out.Records = append(out.Records, PageRecord{Page: rec.Page + 1, Values: values})
	}
	for _, p := range res.OCRPages {
		out.OCRPages = append(out.OCRPages, p+1)
	}
	for _, f := range res.Failures {
		out.Warnings = append(out.Warnings, f.Error())
	}
	return out
}

// elapsed is a logging helper for request timings.
func elapsed(start time.Time) int64 { return time.Since(start).Milliseconds() }

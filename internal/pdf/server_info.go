package pdf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/a3tai/pdf-field-extractor/internal/summary"
)

const (
	infoCacheTTL   = 5 * time.Minute
	infoFileLimit  = 100
	infoScanBudget = 3 * time.Second
	infoRecentRuns = 5
)

// directoryCache keeps the last PDF listing of the root for a TTL.
type directoryCache struct {
	mu       sync.Mutex
	files    []FileInfo
	updated  time.Time
	ttl      time.Duration
	scanning bool
}

func (c *directoryCache) get() ([]FileInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updated.IsZero() || time.Since(c.updated) > c.ttl {
		return nil, false
	}
	return c.files, true
}

func (c *directoryCache) set(files []FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = files
	c.updated = time.Now()
}

// begin marks a scan as running. It returns false when one already is.
func (c *directoryCache) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scanning {
		return false
	}
	c.scanning = true
	return true
}

func (c *directoryCache) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanning = false
}

// serverInfo builds PDFServerInfoResult with a bounded, cached scan of the
// root directory.
type serverInfo struct {
	service *Service
	cache   *directoryCache
}

func newServerInfo(s *Service) *serverInfo {
	return &serverInfo{service: s, cache: &directoryCache{ttl: infoCacheTTL}}
}

func (p *serverInfo) get(ctx context.Context, serverName, version string) (*PDFServerInfoResult, error) {
	s := p.service
	root := s.pathValidator.Root()

	return &PDFServerInfoResult{
		ServerName:          serverName,
		Version:             version,
		DefaultDirectory:    root,
		OutputDirectory:     s.cfg.OutputDir,
		MaxFileSize:         s.cfg.MaxFileSize,
		Fields:              s.vocab.Names(),
		OCRAvailable:        s.cfg.OCR != nil,
		RasterizerAvailable: RasterizerAvailable(s.cfg.Pdftoppm),
		AvailableTools:      availableTools(),
		DirectoryContents:   p.contents(ctx, root),
		RecentRuns:          p.recentRuns(ctx),
		UsageGuidance:       p.usageGuidance(),
	}, nil
}

// recentRuns lists the latest ledger runs, or nothing when the ledger is off
// or unreadable.
func (p *serverInfo) recentRuns(ctx context.Context) []summary.RunRow {
	s := p.service
	if s.ledger == nil {
		return nil
	}
	runs, err := s.ledger.Runs(ctx, infoRecentRuns)
	if err != nil {
		s.logger.Warn("failed to read run ledger", "path", s.ledger.Path(), "err", err)
		return nil
	}
	return runs
}

// contents never fails. A concurrent or failed scan yields an empty list.
func (p *serverInfo) contents(ctx context.Context, root string) []FileInfo {
	if files, ok := p.cache.get(); ok {
		return files
	}
	if !p.cache.begin() {
		return []FileInfo{}
	}
	defer p.cache.end()

	start := time.Now()
	scanCtx, cancel := context.WithTimeout(ctx, infoScanBudget)
	defer cancel()

	files, err := p.service.search.FindPDFsInDirectoryLimited(scanCtx, root, infoFileLimit)
	if err != nil {
		p.service.logger.Warn("directory scan failed", "dir", root, "err", err)
		return []FileInfo{}
	}
	p.cache.set(files)
	p.service.logger.Debug("directory scanned", "dir", root, "files", len(files), "duration_ms", elapsed(start))
	return files
}

func availableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "pdf_search_directory",
			Description: "Find PDF files in the configured directory",
			Usage:       "Locate input documents, optionally filtered by a fuzzy file-name query.",
			Parameters:  "directory (optional), query (optional)",
		},
		{
			Name:        "pdf_detect_fields",
			Description: "List the field labels present in a PDF",
			Usage:       "Discover which LABEL: value fields a document carries before querying it.",
			Parameters:  "path (required)",
		},
		{
			Name:        "pdf_find_pages",
			Description: "Find pages whose field matches a value, without writing files",
			Usage:       "Preview matched pages (1-based) and their field records.",
			Parameters: "path (required), value (required), field (required for match=field), " +
				"match (optional: field|text|line), discover (optional)",
		},
		{
			Name:        "pdf_extract_by_field",
			Description: "Write matched pages to a new PDF with a summary table",
			Usage:       "Produce <FIELD>_<value>/ with the combined PDF, summary.xlsx and report.yaml.",
			Parameters: "path (required), value (required), field, match, discover, " +
				"output_dir (optional), split (optional)",
		},
		{
			Name:        "pdf_server_info",
			Description: "Show server configuration and OCR availability",
			Usage:       "Check the field vocabulary and whether scanned pages can be read.",
			Parameters:  "none",
		},
	}
}

func (p *serverInfo) usageGuidance() string {
	s := p.service
	ocr := "enabled"
	if s.cfg.OCR == nil {
		ocr = "disabled: scanned pages without a text layer cannot be matched"
	}
	return fmt.Sprintf(`PDF Field Extractor Usage Guide:

1. FIND DOCUMENTS:
   - Use 'pdf_search_directory' to list PDFs under %s

2. DISCOVER FIELDS:
   - Use 'pdf_detect_fields' to see which labels a document uses
   - Queryable vocabulary: %v

3. PREVIEW:
   - Use 'pdf_find_pages' with field and value; pages are 1-based
   - Missing fields read "NA"; outcome "no_matches" is not an error

4. EXTRACT:
   - Use 'pdf_extract_by_field' to write the matched pages to %s

NOTES:
- Matching is case-insensitive and literal
- OCR fallback is %s
- Files up to %dMB are accepted`, s.pathValidator.Root(), s.vocab.Names(), s.cfg.OutputDir, ocr,
		s.cfg.MaxFileSize/(1024*1024))
}

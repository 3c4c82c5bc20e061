package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
	pdferrors "github.com/a3tai/pdf-field-extractor/internal/pdf/errors"
	"github.com/a3tai/pdf-field-extractor/internal/summary"
)

// PageWriter copies 0-based pages of src into a new PDF at dst.
type PageWriter interface {
	WritePages(src, dst string, pages []int) error
}

// Recorder stores a run and returns its id.
type Recorder interface {
	Record(ctx context.Context, result *extract.ExtractionResult, fields []string, outputDir string) (string, error)
}

// Artifacts lists what Publish wrote. Paths are absolute when Root is.
type Artifacts struct {
	Dir      string   `json:"dir" yaml:"dir"`
	Combined string   `json:"combined" yaml:"combined"`
	Summary  string   `json:"summary" yaml:"summary"`
	Report   string   `json:"report" yaml:"report"`
	Split    []string `json:"split,omitempty" yaml:"split,omitempty"`
	RunID    string   `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// Publisher writes the combined PDF, summary workbook, run report and,
// optionally, one PDF per matched page.
type Publisher struct {
	root     string
	pages    PageWriter
	xlsx     *summary.XLSXWriter
	recorder Recorder
	split    bool
	logger   *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithSplit enables per-page output files.
func WithSplit(split bool) PublisherOption {
	return func(p *Publisher) { p.split = split }
}

// WithRecorder stores every published run in r.
func WithRecorder(r Recorder) PublisherOption {
	return func(p *Publisher) { p.recorder = r }
}

// WithPublisherLogger sets the logger.
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPublisher returns a Publisher writing below root.
func NewPublisher(root string, pages PageWriter, opts ...PublisherOption) *Publisher {
	p := &Publisher{root: root, pages: pages, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	p.xlsx = summary.NewXLSXWriter(p.logger)
	return p
}

// Root returns the output root directory.
func (p *Publisher) Root() string { return p.root }

// RunDir returns the directory Publish would use for q.
func (p *Publisher) RunDir(q extract.Query) string {
	return filepath.Join(p.root, FolderName(q))
}

// Publish writes the artifacts of result. A result without matches writes
// nothing and returns nil artifacts.
func (p *Publisher) Publish(ctx context.Context, result *extract.ExtractionResult, fields []string) (*Artifacts, error) {
	if result == nil || result.NoMatches() || len(result.Pages) == 0 {
		return nil, nil
	}
	if p.pages == nil {
		return nil, pdferrors.Output(p.root, "no page writer configured", nil)
	}
	start := time.Now()

	dir := p.RunDir(result.Query)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, pdferrors.Output(dir, "create output directory", err)
	}

	art := &Artifacts{
		Dir:      dir,
		Combined: filepath.Join(dir, CombinedName(result.Query)),
		Summary:  filepath.Join(dir, summary.SummaryFileName),
		Report:   filepath.Join(dir, summary.ReportFileName),
	}

	if err := p.pages.WritePages(result.Source, art.Combined, result.Pages); err != nil {
		return nil, err
	}
	if err := p.xlsx.Write(art.Summary, fields, result.Records); err != nil {
		return nil, pdferrors.Output(art.Summary, "write summary", err)
	}

	if p.split {
		files, err := p.writeSplit(ctx, result, fields, dir)
		if err != nil {
			return nil, err
		}
		art.Split = files
	}

	if p.recorder != nil {
		id, err := p.recorder.Record(ctx, result, fields, dir)
		if err != nil {
			return nil, pdferrors.Output(dir, "record run", err)
		}
		art.RunID = id
	}

	report := summary.NewReport(result, fields)
	report.RunID = art.RunID
	report.Artifacts = map[string]string{
		"combined": filepath.Base(art.Combined),
		"summary":  filepath.Base(art.Summary),
	}
	if len(art.Split) > 0 {
		report.Artifacts["split"] = fmt.Sprintf("%d files", len(art.Split))
	}
	if err := summary.WriteReport(art.Report, report); err != nil {
		return nil, pdferrors.Output(art.Report, "write report", err)
	}

	p.logger.Info("publish.ok",
		"dir", dir,
		"pages", len(result.Pages),
		"split", len(art.Split),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return art, nil
}

func (p *Publisher) writeSplit(ctx context.Context, result *extract.ExtractionResult, fields []string, dir string) ([]string, error) {
	byPage := make(map[int]extract.FieldRecord, len(result.Records))
	for _, rec := range result.Records {
		byPage[rec.Page] = rec
	}

	used := map[string]bool{}
	files := make([]string, 0, len(result.Pages))
	for _, page := range result.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, ok := byPage[page]
		if !ok {
			rec = extract.FieldRecord{Page: page}
		}
		name := SplitName(rec, fields)
		if used[name] {
			name = fmt.Sprintf("%s_p%d.pdf", name[:len(name)-len(".pdf")], page+1)
		}
		used[name] = true

		dst := filepath.Join(dir, name)
		if err := p.pages.WritePages(result.Source, dst, []int{page}); err != nil {
			return nil, err
		}
		files = append(files, dst)
	}
	return files, nil
}

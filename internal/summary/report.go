package summary

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
)

// ReportFileName is the run report written next to the combined PDF.
const ReportFileName = "report.yaml"

// Report describes one published extraction run.
type Report struct {
	RunID       string              `yaml:"run_id,omitempty"`
	GeneratedAt time.Time           `yaml:"generated_at"`
	Source      string              `yaml:"source"`
	Query       extract.Query       `yaml:"query"`
	Outcome     extract.Outcome     `yaml:"outcome"`
	TotalPages  int                 `yaml:"total_pages"`
	Pages       []int               `yaml:"pages"`
	OCRPages    []int               `yaml:"ocr_pages,omitempty"`
	Fields      []string            `yaml:"fields"`
	Records     []map[string]string `yaml:"records"`
	Artifacts   map[string]string   `yaml:"artifacts,omitempty"`
	Failures    []string            `yaml:"failures,omitempty"`
}

// NewReport builds a report from result. Page numbers are 1-based.
func NewReport(result *extract.ExtractionResult, fields []string) Report {
	r := Report{
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Source:      result.Source,
		Query:       result.Query,
		Outcome:     result.Outcome,
		TotalPages:  result.TotalPages,
		Pages:       result.DisplayPages(),
		Fields:      fields,
		Records:     make([]map[string]string, 0, len(result.Records)),
	}
	for _, p := range result.OCRPages {
		r.OCRPages = append(r.OCRPages, p+1)
	}
	for _, rec := range result.Records {
		row := map[string]string{PageColumn: fmt.Sprint(rec.Page + 1)}
		for _, f := range fields {
			row[f] = rec.Get(f)
		}
		r.Records = append(r.Records, row)
	}
	for _, f := range result.Failures {
		r.Failures = append(r.Failures, f.Error())
	}
	return r
}

// WriteReport marshals r as YAML to path.
func WriteReport(path string, r Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

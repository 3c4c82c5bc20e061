package extract

import (
	"context"
	"sort"
	"strings"

	pdferrors "github.com/a3tai/pdf-field-extractor/internal/pdf/errors"
)

// NotAvailable is recorded for a vocabulary field whose pattern did not match.
const NotAvailable = "NA"

// Document is the page-level view of an input PDF.
// Page indexes are 0-based.
type Document interface {
	Path() string
	PageCount() int
	PageText(index int) (string, error)
	RenderPage(ctx context.Context, index, dpi int) ([]byte, error)
}

// TextSource records which path produced a page's text.
type TextSource string

const (
	SourceNone   TextSource = "none"
	SourceDirect TextSource = "direct"
	SourceOCR    TextSource = "ocr"
)

// Page is one resolved page. Text may be empty.
type Page struct {
	Index   int
	Text    string
	Source  TextSource
	Failure *pdferrors.PDFError
}

// FieldRecord maps field names to extracted values for one page.
type FieldRecord struct {
	Page   int               `json:"page" yaml:"page"`
	Values map[string]string `json:"values" yaml:"values"`
	order  []string
}

// Get returns the value for name, or NotAvailable when absent.
func (r FieldRecord) Get(name string) string {
	if v, ok := r.Values[NormalizeLabel(name)]; ok {
		return v
	}
	return NotAvailable
}

// Keys returns the record's field names in extractor order.
func (r FieldRecord) Keys() []string {
	if len(r.order) > 0 {
		return append([]string(nil), r.order...)
	}
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MatchMode selects how a query is compared with page text.
type MatchMode string

const (
	// MatchField requires the value to follow the field label on the same line.
	MatchField MatchMode = "field"
	// MatchText requires the value anywhere in the page text.
	MatchText MatchMode = "text"
	// MatchLine requires the value within a single line.
	MatchLine MatchMode = "line"
)

// ParseMatchMode converts a user supplied mode, defaulting to MatchField.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchField:
		return MatchField, nil
	case MatchText:
		return MatchText, nil
	case MatchLine:
		return MatchLine, nil
	default:
		return "", pdferrors.InvalidQuery("unknown match mode %q (want field, text or line)", s)
	}
}

// Query is a user's search request.
type Query struct {
	Field string    `json:"field,omitempty" yaml:"field,omitempty"`
	Value string    `json:"value" yaml:"value"`
	Mode  MatchMode `json:"mode" yaml:"mode"`
}

// Validate checks the query against the active field vocabulary.
// A nil vocabulary accepts any non-blank field.
func (q Query) Validate(vocab Vocabulary) error {
	if strings.TrimSpace(q.Value) == "" {
		return pdferrors.InvalidQuery("value must not be blank")
	}

	switch q.Mode {
	case MatchField, "":
		field := NormalizeLabel(q.Field)
		if field == "" {
			return pdferrors.InvalidQuery("field must not be blank for field-scoped matching")
		}
		if vocab != nil && !vocab.Contains(field) {
			return pdferrors.InvalidQuery("field %q is not in the vocabulary %v", field, vocab.Names())
		}
	case MatchText, MatchLine:
	default:
		return pdferrors.InvalidQuery("unknown match mode %q", q.Mode)
	}
	return nil
}

// Outcome summarises an extraction run.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeNoMatches Outcome = "no_matches"
)

// ExtractionResult is the product of one orchestrated run.
type ExtractionResult struct {
	Query      Query                 `json:"query" yaml:"query"`
	Source     string                `json:"source" yaml:"source"`
	TotalPages int                   `json:"total_pages" yaml:"total_pages"`
	Pages      []int                 `json:"pages" yaml:"pages"`
	Records    []FieldRecord         `json:"records" yaml:"records"`
	Count      int                   `json:"count" yaml:"count"`
	Outcome    Outcome               `json:"outcome" yaml:"outcome"`
	OCRPages   []int                 `json:"ocr_pages" yaml:"ocr_pages"`
	Failures   []*pdferrors.PDFError `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// NoMatches reports whether the run matched no pages.
func (r *ExtractionResult) NoMatches() bool {
	return r.Outcome == OutcomeNoMatches
}

// DisplayPages returns the matched pages as 1-based numbers.
func (r *ExtractionResult) DisplayPages() []int {
	out := make([]int, len(r.Pages))
	for i, p := range r.Pages {
		out[i] = p + 1
	}
	return out
}

// NormalizeLabel trims and upper-cases a field label.
func NormalizeLabel(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

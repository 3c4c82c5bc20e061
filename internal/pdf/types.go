package pdf

import (
	"github.com/a3tai/pdf-field-extractor/internal/extract"
	"github.com/a3tai/pdf-field-extractor/internal/output"
	"github.com/a3tai/pdf-field-extractor/internal/summary"
)

// FileInfo represents information about a PDF file
type FileInfo struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// PDFSearchDirectoryRequest represents a request to list PDF files
type PDFSearchDirectoryRequest struct {
	Directory string `json:"directory"`
	Query     string `json:"query"`
}

// PDFSearchDirectoryResult represents the result of listing PDF files
type PDFSearchDirectoryResult struct {
	Files       []FileInfo `json:"files"`
	TotalCount  int        `json:"total_count"`
	Directory   string     `json:"directory"`
	SearchQuery string     `json:"search_query,omitempty"`
}

// PDFDetectFieldsRequest asks for the field labels present in a document.
type PDFDetectFieldsRequest struct {
	Path string `json:"path"`
}

// PDFDetectFieldsResult lists the labels detected in a document.
type PDFDetectFieldsResult struct {
	FilePath   string   `json:"file_path"`
	TotalPages int      `json:"total_pages"`
	Fields     []string `json:"fields"`
	Vocabulary []string `json:"vocabulary"`
}

// PDFFindPagesRequest is a query against one document.
type PDFFindPagesRequest struct {
	Path  string `json:"path"`
	Field string `json:"field"`
	Value string `json:"value"`
	// Match is field, text or line. Empty means field.
	Match string `json:"match"`
	// Discover accepts a field outside the vocabulary when the document
	// carries it as a "LABEL: value" line.
	Discover bool `json:"discover"`
}

// PageRecord is the field record of one matched page. Page is 1-based.
type PageRecord struct {
	Page   int               `json:"page"`
	Values map[string]string `json:"values"`
}

// PDFFindPagesResult reports the matched pages of a document. Page numbers
// are 1-based.
type PDFFindPagesResult struct {
	FilePath   string          `json:"file_path"`
	Query      extract.Query   `json:"query"`
	Outcome    extract.Outcome `json:"outcome"`
	TotalPages int             `json:"total_pages"`
	Pages      []int           `json:"pages"`
	Fields     []string        `json:"fields"`
	Records    []PageRecord    `json:"records"`
	OCRPages   []int           `json:"ocr_pages"`
	Warnings   []string        `json:"warnings,omitempty"`

	result *extract.ExtractionResult
}

// Result returns the underlying extraction result.
func (r *PDFFindPagesResult) Result() *extract.ExtractionResult { return r.result }

// PDFExtractByFieldRequest finds matching pages and writes them out.
type PDFExtractByFieldRequest struct {
	PDFFindPagesRequest
	// OutputDir overrides the configured output root.
	OutputDir string `json:"output_dir"`
	// Split overrides the configured per-page split when set.
	Split *bool `json:"split,omitempty"`
}

// PDFExtractByFieldResult is a find result plus the artifacts written.
// Artifacts is nil when nothing matched.
type PDFExtractByFieldResult struct {
	PDFFindPagesResult
	Artifacts *output.Artifacts `json:"artifacts,omitempty"`
}

// PDFServerInfoRequest represents a request for server information
type PDFServerInfoRequest struct{}

// PDFServerInfoResult represents server information and usage guidance
type PDFServerInfoResult struct {
	ServerName          string           `json:"server_name"`
	Version             string           `json:"version"`
	DefaultDirectory    string           `json:"default_directory"`
	OutputDirectory     string           `json:"output_directory"`
	MaxFileSize         int64            `json:"max_file_size"`
	Fields              []string         `json:"fields"`
	OCRAvailable        bool             `json:"ocr_available"`
	RasterizerAvailable bool             `json:"rasterizer_available"`
	AvailableTools      []ToolInfo       `json:"available_tools"`
	DirectoryContents   []FileInfo       `json:"directory_contents"`
	RecentRuns          []summary.RunRow `json:"recent_runs,omitempty"`
	UsageGuidance       string           `json:"usage_guidance"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}

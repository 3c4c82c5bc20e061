package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"time"
)

// PDFError is the error type carried across the extraction pipeline.
type PDFError struct {
	Type       ErrorType `json:"type" yaml:"type"`
	Message    string    `json:"message" yaml:"message"`
	Context    string    `json:"context,omitempty" yaml:"context,omitempty"`
	FilePath   string    `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	PageNumber int       `json:"page_number,omitempty" yaml:"page_number,omitempty"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Err        error     `json:"-" yaml:"-"`
}

// ErrorType identifies a failure category.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeDocumentUnreadable means the input could not be opened or parsed.
	ErrorTypeDocumentUnreadable
	// ErrorTypePageResolution means neither direct extraction nor OCR produced
	// text for a page. It never aborts a batch.
	ErrorTypePageResolution
	// ErrorTypeInvalidQuery means the query was rejected before any page work.
	ErrorTypeInvalidQuery
	// ErrorTypeOutput means an artifact could not be written.
	ErrorTypeOutput
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityWarning ErrorSeverity = iota
	SeverityError
)

// Sentinels usable with errors.Is. Matching is by Type only.
var (
	ErrDocumentUnreadable = &PDFError{Type: ErrorTypeDocumentUnreadable, Message: "document unreadable"}
	ErrPageResolution     = &PDFError{Type: ErrorTypePageResolution, Message: "page resolution failed"}
	ErrInvalidQuery       = &PDFError{Type: ErrorTypeInvalidQuery, Message: "invalid query"}
	ErrOutput             = &PDFError{Type: ErrorTypeOutput, Message: "output failed"}
)

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.PageNumber > 0 {
		msg += fmt.Sprintf(" (page %d)", e.PageNumber)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PDFError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a PDFError of the same type.
func (e *PDFError) Is(target error) bool {
	t, ok := target.(*PDFError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeDocumentUnreadable:
		return "DOCUMENT_UNREADABLE"
	case ErrorTypePageResolution:
		return "PAGE_RESOLUTION"
	case ErrorTypeInvalidQuery:
		return "INVALID_QUERY"
	case ErrorTypeOutput:
		return "OUTPUT"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	if et == ErrorTypePageResolution {
		return SeverityWarning
	}
	return SeverityError
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WrapError wraps err as a PDFError of the given type.
func WrapError(errorType ErrorType, message string, err error) *PDFError {
	e := NewPDFError(errorType, message)
	e.Err = err
	return e
}

// DocumentUnreadable builds an ErrorTypeDocumentUnreadable error for path.
func DocumentUnreadable(path, message string, err error) *PDFError {
	return WrapError(ErrorTypeDocumentUnreadable, message, err).WithFile(path)
}

// InvalidQuery builds an ErrorTypeInvalidQuery error.
func InvalidQuery(format string, args ...any) *PDFError {
	return NewPDFError(ErrorTypeInvalidQuery, fmt.Sprintf(format, args...))
}

// PageResolution builds an ErrorTypePageResolution error for a 1-based page.
func PageResolution(path string, page int, err error) *PDFError {
	return WrapError(ErrorTypePageResolution, "no usable text", err).WithFile(path).WithPage(page)
}

// Output builds an ErrorTypeOutput error for path.
func Output(path, message string, err error) *PDFError {
	return WrapError(ErrorTypeOutput, message, err).WithFile(path)
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithFile adds file path information to an existing PDFError
func (e *PDFError) WithFile(filePath string) *PDFError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// GetSeverity returns the severity of this specific error
func (e *PDFError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsType reports whether err wraps a PDFError of type t.
func IsType(err error, t ErrorType) bool {
	var pe *PDFError
	if !stderrors.As(err, &pe) {
		return false
	}
	return pe.Type == t
}

// ErrorCollection accumulates errors from concurrent page workers.
type ErrorCollection struct {
	mu       sync.Mutex
	Errors   []*PDFError `json:"errors" yaml:"errors"`
	Warnings []*PDFError `json:"warnings" yaml:"warnings"`
	FilePath string      `json:"file_path,omitempty" yaml:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		Warnings: make([]*PDFError, 0),
		FilePath: filePath,
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *PDFError) {
	if err == nil {
		return
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if err.FilePath == "" && ec.FilePath != "" {
		err.FilePath = ec.FilePath
	}

	if err.GetSeverity() == SeverityWarning {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.Errors), len(ec.Warnings)
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}
	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}

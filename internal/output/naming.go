// Package output lays out the artifacts of a matched extraction on disk.
package output

import (
	"fmt"
	"strings"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
)

// TextFolderLabel names the output folder when a query has no field.
const TextFolderLabel = "MATCH"

var pathSeparators = strings.NewReplacer("/", "-", "\\", "-")

// SafeValue replaces path separators in v so it can be used in a file name.
func SafeValue(v string) string {
	return pathSeparators.Replace(strings.TrimSpace(v))
}

// FolderName returns the run folder for q: the field without spaces, an
// underscore, then the sanitised value.
func FolderName(q extract.Query) string {
	field := strings.ReplaceAll(extract.NormalizeLabel(q.Field), " ", "")
	if field == "" {
		field = TextFolderLabel
	}
	return field + "_" + SafeValue(q.Value)
}

// CombinedName returns the file name of the PDF holding every matched page.
func CombinedName(q extract.Query) string {
	field := strings.ToLower(strings.ReplaceAll(extract.NormalizeLabel(q.Field), " ", ""))
	if field == "" {
		field = strings.ToLower(TextFolderLabel)
	}
	return field + "-" + SafeValue(q.Value) + ".pdf"
}

// SplitName returns the per-page file name built from rec's field values.
// Pages with every value missing fall back to their 1-based page number.
func SplitName(rec extract.FieldRecord, fields []string) string {
	parts := make([]string, 0, len(fields))
	known := false
	for _, f := range fields {
		v := rec.Get(f)
		if v != extract.NotAvailable {
			known = true
		}
		parts = append(parts, SafeValue(v))
	}
	if !known {
		return fmt.Sprintf("page-%d.pdf", rec.Page+1)
	}
	return strings.Join(parts, "_") + ".pdf"
}

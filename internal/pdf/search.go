package pdf

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modTimeLayout = "2006-01-02 15:04:05"

// Search lists candidate input PDFs below a directory.
type Search struct {
	validator *Validator
}

// NewSearch creates a new PDF search handler with the specified constraints
func NewSearch(maxFileSize int64) *Search {
	return &Search{validator: NewValidator(maxFileSize)}
}

// SearchDirectory walks req.Directory and returns PDFs whose name matches
// req.Query. Hidden directories and symlinks are skipped.
func (s *Search) SearchDirectory(ctx context.Context, req PDFSearchDirectoryRequest) (*PDFSearchDirectoryResult, error) {
	files, err := s.find(ctx, req.Directory, strings.ToLower(strings.TrimSpace(req.Query)), 0)
	if err != nil {
		return nil, err
	}
	abs, _ := filepath.Abs(req.Directory)
	return &PDFSearchDirectoryResult{
		Files:       files,
		TotalCount:  len(files),
		Directory:   abs,
		SearchQuery: req.Query,
	}, nil
}

// FindPDFsInDirectoryLimited returns at most limit PDFs (0 means no limit).
func (s *Search) FindPDFsInDirectoryLimited(ctx context.Context, directory string, limit int) ([]FileInfo, error) {
	return s.find(ctx, directory, "", limit)
}

func (s *Search) find(ctx context.Context, directory, query string, limit int) ([]FileInfo, error) {
	if directory == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	root, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory path: %w", err)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("directory does not exist: %s", directory)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", directory)
	}

	files := make([]FileInfo, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !isPDFName(d.Name()) {
			return nil
		}
		if limit > 0 && len(files) >= limit {
			return filepath.SkipAll
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr
		}
		if err := s.validator.ValidateFileInfo(path, info); err != nil {
			return nil //nolint:nilerr // invalid files are not candidates
		}
		if !matchesQuery(d.Name(), query) {
			return nil
		}
		files = append(files, FileInfo{
			Name:         d.Name(),
			Path:         path,
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format(modTimeLayout),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// matchesQuery reports whether every word of query appears in some word of
// the file name. query must be lower case.
func matchesQuery(filename, query string) bool {
	if query == "" {
		return true
	}
	name := strings.TrimSuffix(strings.ToLower(filename), ".pdf")
	if strings.Contains(name, query) {
		return true
	}

	words := splitIntoWords(name)
	for _, q := range splitIntoWords(query) {
		found := false
		for _, w := range words {
			if strings.Contains(w, q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func splitIntoWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ' ', '_', '-', '.', '(', ')', '[', ']':
			return true
		}
		return false
	})
}

package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	pdferrors "github.com/a3tai/pdf-field-extractor/internal/pdf/errors"
)

// Validator handles PDF file validation operations
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateFile checks that filePath is a PDF within size limits and returns
// its file info. Failures are ErrorTypeDocumentUnreadable.
func (v *Validator) ValidateFile(filePath string) (os.FileInfo, error) {
	fileInfo, err := v.stat(filePath)
	if err != nil {
		return nil, err
	}
	if err := v.ValidateFileInfo(filePath, fileInfo); err != nil {
		return nil, err
	}
	if err := checkHeader(filePath); err != nil {
		return nil, err
	}
	return fileInfo, nil
}

func (v *Validator) stat(filePath string) (os.FileInfo, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, pdferrors.DocumentUnreadable(filePath, "path cannot be empty", nil)
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, pdferrors.DocumentUnreadable(filePath, "file does not exist", nil)
	}
	if err != nil {
		return nil, pdferrors.DocumentUnreadable(filePath, "cannot access file", err)
	}
	return fileInfo, nil
}

// headerWindow is how far into the file the %PDF- marker may start.
const headerWindow = 1024

// checkHeader looks for the %PDF- marker near the start of the file.
func checkHeader(filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return pdferrors.DocumentUnreadable(filePath, "cannot open file", err)
	}
	defer f.Close()

	buf := make([]byte, headerWindow)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return pdferrors.DocumentUnreadable(filePath, "cannot read file", err)
	}
	if !bytes.Contains(buf[:n], []byte("%PDF-")) {
		return pdferrors.DocumentUnreadable(filePath, "missing %PDF header", nil)
	}
	return nil
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return pdferrors.DocumentUnreadable(filePath, "path is a directory, not a file", nil)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return pdferrors.DocumentUnreadable(filePath, "file is not a PDF", nil)
	}

	if fileInfo.Size() == 0 {
		return pdferrors.DocumentUnreadable(filePath, "file is empty", nil)
	}

	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return pdferrors.DocumentUnreadable(filePath,
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", fileInfo.Size(), v.maxFileSize), nil)
	}

	return nil
}

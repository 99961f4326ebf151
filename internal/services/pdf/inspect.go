// Package pdf sanity-checks converted documents before they are handed out.
//
// We use the ledongthuc/pdf library to open the result and count pages.
// It is pure Go, so no CGO is needed.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF means the bytes do not even start like a PDF.
var ErrNotPDF = errors.New("output is not a PDF document")

// Info describes a converted document.
type Info struct {
	Version   string // header version, e.g. "1.7"
	PageCount int
}

// Inspect checks the PDF header and opens the document to count its pages.
func Inspect(data []byte) (info *Info, err error) {
	if !ValidatePDF(data) {
		return nil, ErrNotPDF
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = fmt.Errorf("failed to open PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	return &Info{
		Version:   headerVersion(data),
		PageCount: reader.NumPage(),
	}, nil
}

// ValidatePDF checks if the data looks like a valid PDF by checking the magic bytes.
func ValidatePDF(data []byte) bool {
	// PDF files start with "%PDF-"
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}

func headerVersion(data []byte) string {
	line := data[5:]
	if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	if len(line) > 8 {
		line = line[:8]
	}
	return strings.TrimSpace(string(line))
}

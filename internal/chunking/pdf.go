package chunking

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFSource implements TextSource for PDF files.
type PDFSource struct{}

// NewPDFSource creates a PDF text source.
func NewPDFSource() *PDFSource {
	return &PDFSource{}
}

// ExtractRawText reads the PDF at path and returns its plain text and page
// count. The extractor does not preserve page boundaries in the text; callers
// approximate them. A page count of at least 1 is always reported.
func (s *PDFSource) ExtractRawText(path string) (RawDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return RawDocument{}, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return RawDocument{}, fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return RawDocument{}, fmt.Errorf("reading pdf text: %w", err)
	}

	pageCount := r.NumPage()
	if pageCount < 1 {
		pageCount = 1
	}

	return RawDocument{
		Text:      buf.String(),
		PageCount: pageCount,
	}, nil
}

// Ensure PDFSource implements TextSource.
var _ TextSource = (*PDFSource)(nil)

// Package chunking handles document processing: page extraction, section
// heading detection, and token-bounded overlapping chunking.
package chunking

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lexrag/lexrag/internal/tokenizer"
)

// ErrExtraction is returned when a source file cannot be read or parsed.
// Partial output is never returned alongside it.
var ErrExtraction = errors.New("document extraction failed")

const (
	// DefaultChunkSize is the maximum tokens per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the token overlap between consecutive chunks.
	DefaultChunkOverlap = 200

	// pageBreak is the sentinel some text extractors emit between pages.
	pageBreak = "\f"

	// headingScanLines is how many non-empty lines of a page are scanned
	// for a section heading.
	headingScanLines = 5
)

// headingKeywords matches structural keywords common in legal documents.
var headingKeywords = regexp.MustCompile(`(?i)section|chapter|article|part`)

// ChunkMetadata tracks a chunk's origin within a document.
type ChunkMetadata struct {
	DocumentName   string
	PageNumber     int    // 1-based, never exceeds the document's detected page count
	SectionHeading string // empty when no heading was detected
	ChunkIndex     int    // 0-based, sequential within a page
}

// Chunk is a piece of document text with metadata for retrieval and citation.
type Chunk struct {
	Text     string
	Metadata ChunkMetadata
}

// Page is a single page of extracted text with its detected section heading.
type Page struct {
	Number         int
	Text           string
	SectionHeading string
}

// RawDocument is the output of a text source: the full extracted text and an
// approximate page count.
type RawDocument struct {
	Text      string
	PageCount int
}

// TextSource extracts raw text and a page count from a document file.
type TextSource interface {
	ExtractRawText(path string) (RawDocument, error)
}

// Chunker turns raw per-page text into token-bounded overlapping chunks.
//
// Callers must keep chunkOverlap < chunkSize; otherwise the window never
// advances. This invariant is not runtime-checked.
type Chunker struct {
	source       TextSource
	tok          tokenizer.Tokenizer
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a Chunker over the given text source and tokenizer.
// Non-positive sizes fall back to the defaults.
func NewChunker(source TextSource, tok tokenizer.Tokenizer, chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}

	return &Chunker{
		source:       source,
		tok:          tok,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// ExtractPages distributes raw text across pageCount pages. Extractors do not
// preserve hard page boundaries reliably, so pages are approximated: split on
// the form-feed sentinel when present, otherwise by even character division.
// Whitespace-only pages are dropped without repairing the numbering, so page
// numbers may have gaps.
func (c *Chunker) ExtractPages(raw string, pageCount int) []Page {
	if pageCount <= 0 {
		pageCount = 1
	}

	var pageTexts []string
	if strings.Contains(raw, pageBreak) {
		pageTexts = strings.Split(raw, pageBreak)
	} else {
		charsPerPage := (len(raw) + pageCount - 1) / pageCount
		if charsPerPage <= 0 {
			charsPerPage = 1
		}
		for i := 0; i < pageCount; i++ {
			start := i * charsPerPage
			if start >= len(raw) {
				break
			}
			end := start + charsPerPage
			if end > len(raw) {
				end = len(raw)
			}
			pageTexts = append(pageTexts, raw[start:end])
		}
	}

	pages := make([]Page, 0, len(pageTexts))
	for i, text := range pageTexts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		pages = append(pages, Page{
			Number:         i + 1,
			Text:           trimmed,
			SectionHeading: extractSectionHeading(text),
		})
	}

	return pages
}

// extractSectionHeading scans the first few non-empty lines of a page for a
// section heading: a fully upper-case line, or one containing a legal
// structure keyword. First match wins; absence yields an empty string.
func extractSectionHeading(text string) string {
	scanned := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == strings.ToUpper(trimmed) || headingKeywords.MatchString(trimmed) {
			return trimmed
		}
		scanned++
		if scanned >= headingScanLines {
			break
		}
	}
	return ""
}

// ChunkText splits text into overlapping token windows. Each window
// [start, start+chunkSize) is decoded back to text and emitted as one chunk;
// start advances by chunkSize-chunkOverlap. ChunkIndex starts at 0 and
// increments per chunk; base's ChunkIndex is ignored.
func (c *Chunker) ChunkText(text string, base ChunkMetadata) []Chunk {
	tokens := c.tok.Encode(text)

	var chunks []Chunk
	chunkIndex := 0

	for start := 0; start < len(tokens); start += c.chunkSize - c.chunkOverlap {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		meta := base
		meta.ChunkIndex = chunkIndex

		chunks = append(chunks, Chunk{
			Text:     c.tok.Decode(tokens[start:end]),
			Metadata: meta,
		})
		chunkIndex++
	}

	return chunks
}

// ProcessPDF extracts text from the file at path, distributes it across pages,
// and chunks each page, returning all chunks in page order. As a final pass
// every chunk's page number is clamped to the maximum observed page number;
// extraction anomalies are clamped, never raised.
func (c *Chunker) ProcessPDF(path, documentName string) ([]Chunk, error) {
	raw, err := c.source.ExtractRawText(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	pages := c.ExtractPages(raw.Text, raw.PageCount)
	if len(pages) == 0 {
		return []Chunk{}, nil
	}

	maxPage := 0
	for _, page := range pages {
		if page.Number > maxPage {
			maxPage = page.Number
		}
	}

	var all []Chunk
	for _, page := range pages {
		chunks := c.ChunkText(page.Text, ChunkMetadata{
			DocumentName:   documentName,
			PageNumber:     page.Number,
			SectionHeading: page.SectionHeading,
		})

		for i := range chunks {
			if chunks[i].Metadata.PageNumber > maxPage {
				chunks[i].Metadata.PageNumber = maxPage
			}
		}

		all = append(all, chunks...)
	}

	return all, nil
}

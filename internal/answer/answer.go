// Package answer turns retrieved chunks into a grounded answer with source
// citations, refusing to answer when the context does not contain one.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexrag/lexrag/internal/search"
)

const (
	// notInDocument is the exact refusal sentence the model is instructed
	// to emit when the context lacks an answer. Matched verbatim.
	notInDocument = "Not in the document."

	// DefaultTemperature keeps generation near-deterministic so answers
	// stay grounded in the provided context.
	DefaultTemperature = 0.1

	// DefaultMaxTokens bounds the answer length.
	DefaultMaxTokens = 1000
)

// CompleteOptions controls one completion call.
type CompleteOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// LLM generates a completion from a system and user message.
type LLM interface {
	Complete(ctx context.Context, system, user string, opts CompleteOptions) (string, error)
}

// Source is one cited document location.
type Source struct {
	DocumentName string `json:"documentName"`
	PageNumber   int    `json:"pageNumber"`
}

// Response is the composed answer.
type Response struct {
	Answer          string   `json:"answer"`
	Sources         []Source `json:"sources"`
	FoundInDocument bool     `json:"foundInDocument"`
}

// Composer generates answers strictly from retrieved context.
type Composer struct {
	llm LLM
}

// NewComposer creates an answer composer over the given LLM.
func NewComposer(llm LLM) *Composer {
	return &Composer{llm: llm}
}

const systemPrompt = `You are a precise assistant answering questions strictly from the provided document excerpts.

Rules:
1. Answer ONLY using the provided excerpts. Do not use outside knowledge.
2. If the excerpts do not contain the answer, reply with exactly: ` + notInDocument + `
3. When you answer, cite the source document and page number for every claim, e.g. "(report.pdf, Page 3)".
4. Be concise and factual. Do not speculate.`

// GenerateAnswer composes an answer from the question and retrieved chunks.
// Empty chunks short-circuit to the not-found response without calling the
// model.
func (c *Composer) GenerateAnswer(ctx context.Context, question string, chunks []search.Result) (Response, error) {
	if len(chunks) == 0 {
		return Response{
			Answer:          notInDocument,
			Sources:         []Source{},
			FoundInDocument: false,
		}, nil
	}

	user := fmt.Sprintf("Document excerpts:\n\n%s\n\nQuestion: %s", formatChunks(chunks), question)

	raw, err := c.llm.Complete(ctx, systemPrompt, user, CompleteOptions{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("generating answer: %w", err)
	}

	return parseAnswer(raw, chunks), nil
}

// formatChunks renders each chunk with a source header so the model can cite
// document and page.
func formatChunks(chunks []search.Result) string {
	var sb strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("[Source %d: %s, Page %d", i+1, chunk.Metadata.DocumentName, chunk.Metadata.PageNumber))
		if chunk.Metadata.SectionHeading != "" {
			sb.WriteString(", Section " + chunk.Metadata.SectionHeading)
		}
		sb.WriteString("]\n")
		sb.WriteString(chunk.Text)
	}
	return sb.String()
}

// parseAnswer classifies the raw model output and extracts cited sources.
func parseAnswer(raw string, chunks []search.Result) Response {
	answer := strings.TrimSpace(raw)

	if answer == "" || strings.Contains(answer, notInDocument) {
		return Response{
			Answer:          notInDocument,
			Sources:         []Source{},
			FoundInDocument: false,
		}
	}

	return Response{
		Answer:          answer,
		Sources:         extractSources(answer, chunks),
		FoundInDocument: true,
	}
}

// extractSources returns the chunks the answer actually references, matched
// by document name or a case-insensitive "page N" mention, deduplicated by
// document and page.
// When nothing matches, all chunk locations are returned so the caller always
// sees what context backed the answer.
func extractSources(answer string, chunks []search.Result) []Source {
	seen := make(map[string]struct{})
	sources := make([]Source, 0, len(chunks))

	add := func(chunk search.Result) {
		key := fmt.Sprintf("%s:%d", chunk.Metadata.DocumentName, chunk.Metadata.PageNumber)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		sources = append(sources, Source{
			DocumentName: chunk.Metadata.DocumentName,
			PageNumber:   chunk.Metadata.PageNumber,
		})
	}

	loweredAnswer := strings.ToLower(answer)
	for _, chunk := range chunks {
		pageRef := fmt.Sprintf("page %d", chunk.Metadata.PageNumber)
		if strings.Contains(answer, chunk.Metadata.DocumentName) || strings.Contains(loweredAnswer, pageRef) {
			add(chunk)
		}
	}

	if len(sources) == 0 {
		for _, chunk := range chunks {
			add(chunk)
		}
	}

	return sources
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lexrag/lexrag/internal/answer"
	"github.com/lexrag/lexrag/internal/repository"
	"github.com/lexrag/lexrag/internal/search"
)

// QueryResult is the full outcome of one question.
type QueryResult struct {
	Answer          string          `json:"answer"`
	Sources         []answer.Source `json:"sources"`
	FoundInDocument bool            `json:"foundInDocument"`
	SearchResults   []search.Result `json:"searchResults,omitempty"`
}

// QueryService answers questions against a user's uploaded documents.
type QueryService struct {
	engine   *search.Engine
	composer *answer.Composer
	docRepo  repository.DocumentRepository
	index    string
	logger   *slog.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(
	engine *search.Engine,
	composer *answer.Composer,
	docRepo repository.DocumentRepository,
	index string,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		engine:   engine,
		composer: composer,
		docRepo:  docRepo,
		index:    index,
		logger:   logger,
	}
}

// Ask retrieves relevant chunks from the user's namespace and composes a
// grounded answer. Retrieval is tuned to the user's largest document; a
// metadata lookup failure degrades to the unknown-size configuration rather
// than failing the query.
func (s *QueryService) Ask(ctx context.Context, userID, question string) (*QueryResult, error) {
	cfg := search.GetAdaptiveConfig(s.maxPageCount(ctx, userID))

	results, err := s.engine.SearchRelevantChunks(ctx, question, s.index, userID, &cfg)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	analysis := search.AnalyzeResults(results)
	s.logger.Info("retrieval complete",
		"namespace", userID,
		"chunks", analysis.Count,
		"documents", len(analysis.ByDocument),
		"maxScore", analysis.MaxScore,
		"sizeHint", cfg.DocumentSizeHint)

	resp, err := s.composer.GenerateAnswer(ctx, question, results)
	if err != nil {
		return nil, fmt.Errorf("composing answer: %w", err)
	}

	return &QueryResult{
		Answer:          resp.Answer,
		Sources:         resp.Sources,
		FoundInDocument: resp.FoundInDocument,
		SearchResults:   results,
	}, nil
}

// maxPageCount returns the largest page count among the user's documents, or
// 0 when the user has none or the lookup fails.
func (s *QueryService) maxPageCount(ctx context.Context, userID string) int {
	docs, err := s.docRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("document listing failed, using default search config",
			"namespace", userID, "error", err)
		return 0
	}

	maxPages := 0
	for _, doc := range docs {
		if doc.PageCount > maxPages {
			maxPages = doc.PageCount
		}
	}
	return maxPages
}

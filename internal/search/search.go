// Package search runs hybrid retrieval and shrinks the candidate set into a
// deduplicated, diversity-aware context window for answer generation.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lexrag/lexrag/internal/chunking"
	"github.com/lexrag/lexrag/internal/embedding"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

// ErrSearch wraps any embedding or vector-store failure during a search.
// There is no partial or fallback result.
var ErrSearch = errors.New("search execution failed")

// Document size hints for adaptive configuration.
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

// Config controls one retrieval pass.
type Config struct {
	// TopK is the initial candidate pool size.
	TopK int

	// FinalChunkCount is the target output size. Expected to be <= TopK,
	// not enforced.
	FinalChunkCount int

	// SimilarityThreshold is the Jaccard-similarity duplicate cutoff in
	// [0,1]; candidates strictly above it are dropped as duplicates.
	SimilarityThreshold float64

	// DocumentSizeHint is one of SizeSmall/SizeMedium/SizeLarge, or empty
	// when the document size is unknown.
	DocumentSizeHint string
}

// Result is one retrieved chunk, scored for relevance.
type Result struct {
	ID       string
	Score    float64
	Text     string
	Metadata chunking.ChunkMetadata
}

// QueryEmbedder is the query-side embedding dependency.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) (embedding.HybridEmbedding, error)
}

// Engine retrieves a candidate pool, deduplicates near-identical chunks, and
// greedily selects a diverse final subset.
type Engine struct {
	embedder QueryEmbedder
	store    vectorstore.Store
}

// NewEngine creates a search engine over the given embedder and store.
func NewEngine(embedder QueryEmbedder, store vectorstore.Store) *Engine {
	return &Engine{embedder: embedder, store: store}
}

// GetAdaptiveConfig returns a search configuration tiered by document size.
// Larger documents retrieve and keep more chunks. estimatedPageCount <= 0
// means the size is unknown.
func GetAdaptiveConfig(estimatedPageCount int) Config {
	switch {
	case estimatedPageCount <= 0:
		return Config{TopK: 15, FinalChunkCount: 6, SimilarityThreshold: 0.85}
	case estimatedPageCount <= 20:
		return Config{TopK: 12, FinalChunkCount: 6, SimilarityThreshold: 0.85, DocumentSizeHint: SizeSmall}
	case estimatedPageCount <= 40:
		return Config{TopK: 16, FinalChunkCount: 7, SimilarityThreshold: 0.85, DocumentSizeHint: SizeMedium}
	default:
		return Config{TopK: 20, FinalChunkCount: 8, SimilarityThreshold: 0.85, DocumentSizeHint: SizeLarge}
	}
}

// SearchRelevantChunks embeds the query, retrieves the topK candidates from
// the namespace, deduplicates them, and selects a diverse final subset.
// Zero matches is a valid terminal state returning an empty slice.
// A nil cfg uses the unknown-size adaptive default.
func (e *Engine) SearchRelevantChunks(ctx context.Context, query, index, namespace string, cfg *Config) ([]Result, error) {
	config := GetAdaptiveConfig(0)
	if cfg != nil {
		config = *cfg
	}

	queryEmbedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrSearch, err)
	}

	matches, err := e.store.Query(ctx, index, namespace,
		queryEmbedding.Dense.Values,
		&vectorstore.SparseVector{
			Indices: queryEmbedding.Sparse.Indices,
			Values:  queryEmbedding.Sparse.Values,
		},
		config.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %v", ErrSearch, err)
	}

	if len(matches) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, len(matches))
	for i, match := range matches {
		results[i] = Result{
			ID:    match.ID,
			Score: float64(match.Score),
			Text:  match.Text,
			Metadata: chunking.ChunkMetadata{
				DocumentName:   match.Payload["documentName"],
				PageNumber:     atoiOrZero(match.Payload["pageNumber"]),
				SectionHeading: match.Payload["sectionHeading"],
				ChunkIndex:     atoiOrZero(match.Payload["chunkIndex"]),
			},
		}
	}

	deduplicated := deduplicateChunks(results, config.SimilarityThreshold)

	return selectDiverseChunks(deduplicated, config.FinalChunkCount), nil
}

// deduplicateChunks drops candidates whose Jaccard similarity to any
// already-accepted chunk strictly exceeds threshold. Input order is
// retrieval-score-descending, so higher-scoring near-duplicates survive and
// later ones are dropped.
func deduplicateChunks(results []Result, threshold float64) []Result {
	if len(results) <= 1 {
		return results
	}

	accepted := make([]Result, 0, len(results))
	acceptedSets := make([]map[string]struct{}, 0, len(results))

	for _, result := range results {
		set := wordSet(result.Text)

		duplicate := false
		for _, other := range acceptedSets {
			if jaccardSimilarity(set, other) > threshold {
				duplicate = true
				break
			}
		}

		if !duplicate {
			accepted = append(accepted, result)
			acceptedSets = append(acceptedSets, set)
		}
	}

	return accepted
}

// wordSet builds the lower-cased, whitespace-tokenized word set used for
// similarity comparison.
func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// jaccardSimilarity computes |A∩B| / |A∪B| over two word sets.
func jaccardSimilarity(a, b map[string]struct{}) float64 {
	intersection := 0
	for word := range a {
		if _, ok := b[word]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// selectDiverseChunks greedily selects up to targetCount chunks, seeded with
// the highest-scoring one. Each iteration picks the remaining candidate
// maximizing score plus diversity bonus; strict comparison means ties break
// toward pool order. This is a deliberate greedy heuristic, not an optimal
// clustering.
func selectDiverseChunks(chunks []Result, targetCount int) []Result {
	if len(chunks) <= targetCount {
		return chunks
	}

	selected := make([]Result, 0, targetCount)
	selected = append(selected, chunks[0])

	remaining := make([]Result, len(chunks)-1)
	copy(remaining, chunks[1:])

	for len(selected) < targetCount && len(remaining) > 0 {
		bestIndex := -1
		bestScore := -1.0

		for i, candidate := range remaining {
			score := candidate.Score + diversityBonus(candidate, selected)
			if score > bestScore {
				bestScore = score
				bestIndex = i
			}
		}

		if bestIndex < 0 {
			break
		}

		selected = append(selected, remaining[bestIndex])
		remaining = append(remaining[:bestIndex], remaining[bestIndex+1:]...)
	}

	return selected
}

// diversityBonus rewards candidates introducing a new document (+0.2), a new
// page (+0.1), or a new non-empty section heading (+0.1). The bonuses are
// additive and capped well below typical score separations so a low-relevance
// but diverse chunk cannot dominate a highly relevant redundant one.
func diversityBonus(candidate Result, selected []Result) float64 {
	bonus := 0.0

	newDocument := true
	newPage := true
	for _, s := range selected {
		if s.Metadata.DocumentName == candidate.Metadata.DocumentName {
			newDocument = false
		}
		if s.Metadata.PageNumber == candidate.Metadata.PageNumber {
			newPage = false
		}
	}
	if newDocument {
		bonus += 0.2
	}
	if newPage {
		bonus += 0.1
	}

	if candidate.Metadata.SectionHeading != "" {
		newSection := true
		for _, s := range selected {
			if s.Metadata.SectionHeading == candidate.Metadata.SectionHeading {
				newSection = false
				break
			}
		}
		if newSection {
			bonus += 0.1
		}
	}

	return bonus
}

// Analysis summarizes a result set for observability; it feeds logs, not
// decision logic.
type Analysis struct {
	Count      int
	MinScore   float64
	MaxScore   float64
	AvgScore   float64
	ByDocument map[string]int
	ByPage     map[int]int
}

// AnalyzeResults computes count, score range, average score, and counts
// grouped by document and page. An empty input yields zero-valued statistics
// with Count == 0; callers should branch on Count before reading scores.
func AnalyzeResults(results []Result) Analysis {
	analysis := Analysis{
		Count:      len(results),
		ByDocument: make(map[string]int),
		ByPage:     make(map[int]int),
	}

	if len(results) == 0 {
		return analysis
	}

	sum := 0.0
	analysis.MinScore = results[0].Score
	analysis.MaxScore = results[0].Score

	for _, result := range results {
		if result.Score < analysis.MinScore {
			analysis.MinScore = result.Score
		}
		if result.Score > analysis.MaxScore {
			analysis.MaxScore = result.Score
		}
		sum += result.Score

		analysis.ByDocument[result.Metadata.DocumentName]++
		analysis.ByPage[result.Metadata.PageNumber]++
	}

	analysis.AvgScore = sum / float64(len(results))

	return analysis
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

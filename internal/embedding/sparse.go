package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultSparseBaseURL is the default Pinecone inference API base URL.
	DefaultSparseBaseURL = "https://api.pinecone.io"

	// DefaultSparseModel is the default sparse embedding model.
	DefaultSparseModel = "pinecone-sparse-english-v0"
)

// PineconeSparseConfig holds configuration for the Pinecone sparse embedder.
type PineconeSparseConfig struct {
	// BaseURL is the inference API base URL (default: https://api.pinecone.io).
	BaseURL string

	// APIKey is the API key for the inference API.
	APIKey string

	// Model is the sparse embedding model to use.
	Model string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// PineconeSparse implements SparseProvider using the Pinecone inference API.
// The response shape for sparse vectors is not standardized across API
// versions; responses are normalized through an ordered sequence of shape
// matchers.
type PineconeSparse struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewPineconeSparse creates a sparse embedding provider with the given configuration.
func NewPineconeSparse(cfg PineconeSparseConfig) *PineconeSparse {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultSparseBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultSparseModel
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &PineconeSparse{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  client,
	}
}

type sparseEmbedRequest struct {
	Model      string            `json:"model"`
	Inputs     []sparseInput     `json:"inputs"`
	Parameters map[string]string `json:"parameters"`
}

type sparseInput struct {
	Text string `json:"text"`
}

type sparseEmbedResponse struct {
	Data []json.RawMessage `json:"data"`
}

// EmbedSparse generates a sparse embedding for a single text input.
func (p *PineconeSparse) EmbedSparse(ctx context.Context, text string) (SparseEmbedding, error) {
	embeddings, err := p.EmbedSparseBatch(ctx, []string{text})
	if err != nil {
		return SparseEmbedding{}, err
	}
	return embeddings[0], nil
}

// EmbedSparseBatch generates sparse embeddings for multiple texts in one
// network call, returned in input order.
func (p *PineconeSparse) EmbedSparseBatch(ctx context.Context, texts []string) ([]SparseEmbedding, error) {
	if len(texts) == 0 {
		return []SparseEmbedding{}, nil
	}

	inputs := make([]sparseInput, len(texts))
	for i, text := range texts {
		inputs[i] = sparseInput{Text: text}
	}

	body, err := json.Marshal(sparseEmbedRequest{
		Model:  p.model,
		Inputs: inputs,
		Parameters: map[string]string{
			"input_type": "passage",
			"truncate":   "END",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: sparse API status %d: %s", ErrProvider, resp.StatusCode, string(respBody))
	}

	var result sparseEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding sparse response: %v", ErrProvider, err)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d sparse embeddings, got %d", ErrProvider, len(texts), len(result.Data))
	}

	embeddings := make([]SparseEmbedding, len(result.Data))
	for i, raw := range result.Data {
		sparse, err := normalizeSparse(raw)
		if err != nil {
			return nil, err
		}
		embeddings[i] = sparse
	}

	return embeddings, nil
}

// Ensure PineconeSparse implements SparseProvider.
var _ SparseProvider = (*PineconeSparse)(nil)

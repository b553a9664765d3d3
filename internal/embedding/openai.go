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
	// DefaultOpenAIBaseURL is the default OpenAI-compatible API base URL.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultDenseModel is the default dense embedding model.
	DefaultDenseModel = "text-embedding-3-large"
)

// OpenAIDenseConfig holds configuration for the OpenAI dense embedder.
type OpenAIDenseConfig struct {
	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// APIKey is the bearer token for the API.
	APIKey string

	// Model is the embedding model to use (default: text-embedding-3-large).
	Model string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// OpenAIDense implements DenseProvider using an OpenAI-compatible
// /embeddings endpoint.
type OpenAIDense struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIDense creates a dense embedding provider with the given configuration.
func NewOpenAIDense(cfg OpenAIDenseConfig) *OpenAIDense {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultDenseModel
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &OpenAIDense{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  client,
	}
}

type openaiEmbedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedDense generates a dense embedding for a single text input.
func (p *OpenAIDense) EmbedDense(ctx context.Context, text string) (DenseEmbedding, error) {
	embeddings, err := p.EmbedDenseBatch(ctx, []string{text})
	if err != nil {
		return DenseEmbedding{}, err
	}
	return embeddings[0], nil
}

// EmbedDenseBatch generates dense embeddings for multiple texts in one
// network call, returned in input order.
func (p *OpenAIDense) EmbedDenseBatch(ctx context.Context, texts []string) ([]DenseEmbedding, error) {
	if len(texts) == 0 {
		return []DenseEmbedding{}, nil
	}

	body, err := json.Marshal(openaiEmbedRequest{
		Model:          p.model,
		Input:          texts,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: dense API status %d: %s", ErrProvider, resp.StatusCode, string(respBody))
	}

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding dense response: %v", ErrProvider, err)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d dense embeddings, got %d", ErrProvider, len(texts), len(result.Data))
	}

	embeddings := make([]DenseEmbedding, len(texts))
	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("%w: dense embedding index %d out of range", ErrProvider, item.Index)
		}
		embeddings[item.Index] = DenseEmbedding{
			Values:    item.Embedding,
			Dimension: len(item.Embedding),
		}
	}

	return embeddings, nil
}

// Ensure OpenAIDense implements DenseProvider.
var _ DenseProvider = (*OpenAIDense)(nil)

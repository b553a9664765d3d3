package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexrag/lexrag/internal/answer"
	"github.com/lexrag/lexrag/internal/embedding"
	"github.com/lexrag/lexrag/internal/repository"
	"github.com/lexrag/lexrag/internal/search"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

type fakeQueryEmbedder struct{}

func (fakeQueryEmbedder) EmbedQuery(ctx context.Context, query string) (embedding.HybridEmbedding, error) {
	return embedding.HybridEmbedding{
		Dense:  embedding.DenseEmbedding{Values: []float32{0.1}, Dimension: 1},
		Sparse: embedding.SparseEmbedding{Indices: []uint32{1}, Values: []float32{0.5}},
		Text:   query,
	}, nil
}

type fakeLLM struct {
	reply  string
	called bool
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, opts answer.CompleteOptions) (string, error) {
	f.called = true
	return f.reply, nil
}

func newQueryFixture(store *fakeStore, repo *fakeRepo, llm *fakeLLM) *QueryService {
	engine := search.NewEngine(fakeQueryEmbedder{}, store)
	composer := answer.NewComposer(llm)
	return NewQueryService(engine, composer, repo, "law", testLogger())
}

func TestAsk_AdaptsToLargestDocument(t *testing.T) {
	store := &fakeStore{matches: []vectorstore.Match{
		{
			ID:    "statute.pdf:12:0",
			Score: 0.9,
			Text:  "the limitation period is six years",
			Payload: map[string]string{
				"documentName": "statute.pdf",
				"pageNumber":   "12",
			},
		},
	}}
	repo := &fakeRepo{docs: []*repository.Document{
		{UserID: "user-1", DocumentName: "statute.pdf", PageCount: 50},
		{UserID: "user-1", DocumentName: "memo.pdf", PageCount: 4},
	}}
	llm := &fakeLLM{reply: "The limitation period is six years (statute.pdf, Page 12)."}

	svc := newQueryFixture(store, repo, llm)

	result, err := svc.Ask(context.Background(), "user-1", "what is the limitation period?")
	require.NoError(t, err)

	// The 50-page document selects the large-document configuration.
	assert.Equal(t, 20, store.gotQueryTopK)

	assert.True(t, result.FoundInDocument)
	assert.Contains(t, result.Answer, "six years")
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "statute.pdf", result.Sources[0].DocumentName)
	assert.Equal(t, 12, result.Sources[0].PageNumber)
	require.Len(t, result.SearchResults, 1)
}

func TestAsk_NoMatchesSkipsLLM(t *testing.T) {
	store := &fakeStore{}
	repo := &fakeRepo{}
	llm := &fakeLLM{reply: "should never be used"}

	svc := newQueryFixture(store, repo, llm)

	result, err := svc.Ask(context.Background(), "user-1", "anything?")
	require.NoError(t, err)

	assert.False(t, llm.called)
	assert.False(t, result.FoundInDocument)
	assert.Equal(t, "Not in the document.", result.Answer)
	assert.Empty(t, result.Sources)

	// No documents means the unknown-size configuration.
	assert.Equal(t, 15, store.gotQueryTopK)
}

package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexrag/lexrag/internal/chunking"
	"github.com/lexrag/lexrag/internal/search"
)

type fakeLLM struct {
	reply      string
	err        error
	gotSystem  string
	gotUser    string
	gotOptions CompleteOptions
	called     bool
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, opts CompleteOptions) (string, error) {
	f.called = true
	f.gotSystem = system
	f.gotUser = user
	f.gotOptions = opts
	return f.reply, f.err
}

func someChunks() []search.Result {
	return []search.Result{
		{
			Score: 0.9,
			Text:  "Rent is due on the first of each month.",
			Metadata: chunking.ChunkMetadata{
				DocumentName:   "lease.pdf",
				PageNumber:     3,
				SectionHeading: "PAYMENT",
			},
		},
		{
			Score: 0.7,
			Text:  "Late payments accrue interest at 5% per annum.",
			Metadata: chunking.ChunkMetadata{
				DocumentName: "lease.pdf",
				PageNumber:   4,
			},
		},
	}
}

func TestGenerateAnswer_EmptyChunksShortCircuits(t *testing.T) {
	llm := &fakeLLM{}
	composer := NewComposer(llm)

	resp, err := composer.GenerateAnswer(context.Background(), "when is rent due?", nil)
	require.NoError(t, err)

	assert.False(t, llm.called)
	assert.Equal(t, "Not in the document.", resp.Answer)
	assert.False(t, resp.FoundInDocument)
	assert.Empty(t, resp.Sources)
}

func TestGenerateAnswer_PromptContainsSources(t *testing.T) {
	llm := &fakeLLM{reply: "Rent is due on the first of each month (lease.pdf, Page 3)."}
	composer := NewComposer(llm)

	_, err := composer.GenerateAnswer(context.Background(), "when is rent due?", someChunks())
	require.NoError(t, err)

	assert.Contains(t, llm.gotUser, "[Source 1: lease.pdf, Page 3, Section PAYMENT]")
	assert.Contains(t, llm.gotUser, "[Source 2: lease.pdf, Page 4]")
	assert.Contains(t, llm.gotUser, "Rent is due on the first of each month.")
	assert.Contains(t, llm.gotUser, "Question: when is rent due?")
	assert.Contains(t, llm.gotSystem, "Not in the document.")
	assert.Equal(t, float32(0.1), llm.gotOptions.Temperature)
	assert.Equal(t, 1000, llm.gotOptions.MaxTokens)
}

func TestGenerateAnswer_ExtractsCitedSources(t *testing.T) {
	llm := &fakeLLM{reply: "Rent is due on the first of each month (lease.pdf, Page 3)."}
	composer := NewComposer(llm)

	resp, err := composer.GenerateAnswer(context.Background(), "when is rent due?", someChunks())
	require.NoError(t, err)

	assert.True(t, resp.FoundInDocument)
	// Both chunks come from lease.pdf, so the document-name match cites
	// both pages, deduplicated by document and page.
	assert.Equal(t, []Source{
		{DocumentName: "lease.pdf", PageNumber: 3},
		{DocumentName: "lease.pdf", PageNumber: 4},
	}, resp.Sources)
}

func TestGenerateAnswer_MatchesLowerCasePageMention(t *testing.T) {
	// The model often writes "on page 3" rather than "Page 3"; the citation
	// match must not depend on the casing.
	llm := &fakeLLM{reply: "Rent is due on the first of each month, per the clause on page 3."}
	composer := NewComposer(llm)

	resp, err := composer.GenerateAnswer(context.Background(), "when is rent due?", someChunks())
	require.NoError(t, err)

	assert.True(t, resp.FoundInDocument)
	assert.Equal(t, []Source{
		{DocumentName: "lease.pdf", PageNumber: 3},
	}, resp.Sources)
}

func TestGenerateAnswer_FallsBackToAllSources(t *testing.T) {
	llm := &fakeLLM{reply: "Rent is due on the first of each month."}
	composer := NewComposer(llm)

	resp, err := composer.GenerateAnswer(context.Background(), "when is rent due?", someChunks())
	require.NoError(t, err)

	assert.True(t, resp.FoundInDocument)
	assert.Len(t, resp.Sources, 2)
}

func TestGenerateAnswer_NotFoundReply(t *testing.T) {
	llm := &fakeLLM{reply: "Not in the document."}
	composer := NewComposer(llm)

	resp, err := composer.GenerateAnswer(context.Background(), "who wins the world cup?", someChunks())
	require.NoError(t, err)

	assert.False(t, resp.FoundInDocument)
	assert.Equal(t, "Not in the document.", resp.Answer)
	assert.Empty(t, resp.Sources)
}

func TestGenerateAnswer_BlankReplyTreatedAsNotFound(t *testing.T) {
	llm := &fakeLLM{reply: "   \n"}
	composer := NewComposer(llm)

	resp, err := composer.GenerateAnswer(context.Background(), "q", someChunks())
	require.NoError(t, err)

	assert.False(t, resp.FoundInDocument)
	assert.Equal(t, "Not in the document.", resp.Answer)
}

func TestGenerateAnswer_LLMError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("upstream timeout")}
	composer := NewComposer(llm)

	_, err := composer.GenerateAnswer(context.Background(), "q", someChunks())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generating answer")
}

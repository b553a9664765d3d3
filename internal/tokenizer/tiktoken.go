package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding shared by the GPT-4 family of chat and
// embedding models, so chunk-size limits measured here match the models
// consuming the chunks.
const DefaultEncoding = "cl100k_base"

// Tiktoken implements Tokenizer using OpenAI's BPE encodings.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken creates a tokenizer for the given encoding name.
// An empty name selects DefaultEncoding.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer encoding %q: %w", encoding, err)
	}

	return &Tiktoken{enc: enc}, nil
}

// Encode converts text into token IDs.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode converts token IDs back into text.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Ensure Tiktoken implements Tokenizer.
var _ Tokenizer = (*Tiktoken)(nil)

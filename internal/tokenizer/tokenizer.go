// Package tokenizer provides model-token encoding for chunk boundary measurement.
package tokenizer

// Tokenizer converts text to and from model token IDs. Decode(Encode(x)) need
// not equal x byte-for-byte across chunk boundaries (BPE merges at the edges),
// but must remain human-legible.
type Tokenizer interface {
	// Encode converts text into a sequence of token IDs.
	Encode(text string) []int

	// Decode converts a sequence of token IDs back into text.
	Decode(tokens []int) string
}

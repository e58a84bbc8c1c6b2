package port

// Tokenizer extracts query terms and estimates prompt size.
type Tokenizer interface {
	Terms(text string) []string

	CountTokens(text string) int
}

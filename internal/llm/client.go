package llm

import (
	"context"
)

// LLMClient is the minimal surface the resolution oracle needs from a
// language model provider.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RerankerClient orders documents by relevance to a query. Implementations
// return indices into the documents slice, most relevant first.
type RerankerClient interface {
	Rank(ctx context.Context, query string, documents []string) ([]int, error)
}

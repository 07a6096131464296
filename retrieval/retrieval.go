// Package retrieval embeds queries and finds the most relevant chunks
// in the vector index.
package retrieval

import (
	"context"
	"fmt"

	"notionrag/llm"
	"notionrag/store"
)

// DefaultTopK is the number of results returned when the caller does
// not specify one.
const DefaultTopK = 5

// Retriever searches the chunk index for a natural-language query.
type Retriever struct {
	store    *store.Store
	embedder llm.Provider
}

// New returns a Retriever over the given store and embedding provider.
func New(s *store.Store, embedder llm.Provider) *Retriever {
	return &Retriever{store: s, embedder: embedder}
}

// Search embeds the query and returns up to topK chunks in descending
// relevance order. topK <= 0 uses DefaultTopK.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]store.Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding query: empty response")
	}

	results, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

// SearchWithThreshold returns only results scoring at or above minScore.
func (r *Retriever) SearchWithThreshold(ctx context.Context, query string, topK int, minScore float64) ([]store.Result, error) {
	results, err := r.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	filtered := results[:0]
	for _, res := range results {
		if res.Score >= minScore {
			filtered = append(filtered, res)
		}
	}
	return filtered, nil
}

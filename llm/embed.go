package llm

import (
	"context"
	"fmt"
)

// embedBatchSize bounds the number of inputs per embedding request.
const embedBatchSize = 100

// EmbedBatch embeds texts through p in bounded batches, preserving
// input order. A nil or empty input returns an empty result.
func EmbedBatch(ctx context.Context, p Provider, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors, want %d", start, end, len(batch), end-start)
		}
		all = append(all, batch...)
	}
	return all, nil
}

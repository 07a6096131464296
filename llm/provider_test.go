package llm

import (
	"context"
	"fmt"
	"testing"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"openai", "*llm.openAIProvider"},
		{"ollama", "*llm.ollamaProvider"},
		{"gemini", "*llm.geminiProvider"},
		{"custom", "*llm.openAICompatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Config{
				Provider: tt.provider,
				Model:    "test-model",
			}
			p, err := NewProvider(cfg)
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			gotType := fmt.Sprintf("%T", p)
			if gotType != tt.wantType {
				t.Errorf("NewProvider(%q) type = %s, want %s", tt.provider, gotType, tt.wantType)
			}
		})
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "doesnotexist", Model: "test-model"})
	if err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}
	want := "unknown llm provider: doesnotexist"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestNewProviderEmpty(t *testing.T) {
	_, err := NewProvider(Config{Model: "test-model"})
	if err == nil {
		t.Fatal("expected error for empty provider, got nil")
	}
}

// batchProvider records the batch sizes passed to Embed.
type batchProvider struct {
	batches []int
}

func (b *batchProvider) Chat(context.Context, ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{}, nil
}

func (b *batchProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	b.batches = append(b.batches, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(b.batches)), float32(i)}
	}
	return out, nil
}

func TestEmbedBatchSplitsAndPreservesOrder(t *testing.T) {
	p := &batchProvider{}
	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	got, err := EmbedBatch(context.Background(), p, texts)
	if err != nil {
		t.Fatalf("EmbedBatch returned error: %v", err)
	}
	if len(got) != 250 {
		t.Fatalf("len(embeddings) = %d, want 250", len(got))
	}

	wantBatches := []int{100, 100, 50}
	if len(p.batches) != len(wantBatches) {
		t.Fatalf("batch count = %d, want %d", len(p.batches), len(wantBatches))
	}
	for i, want := range wantBatches {
		if p.batches[i] != want {
			t.Errorf("batch[%d] size = %d, want %d", i, p.batches[i], want)
		}
	}

	// The third batch's vectors must land after the first two, in order.
	if got[200][0] != 3 || got[200][1] != 0 {
		t.Errorf("embedding 200 = %v, want batch 3 element 0", got[200])
	}
}

func TestEmbedBatchEmpty(t *testing.T) {
	p := &batchProvider{}
	got, err := EmbedBatch(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil) returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
	if len(p.batches) != 0 {
		t.Errorf("provider called %d times, want 0", len(p.batches))
	}
}

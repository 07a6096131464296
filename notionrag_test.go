package notionrag

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"notionrag/chunker"
	"notionrag/images"
	"notionrag/llm"
	"notionrag/notion"
	"notionrag/rag"
	"notionrag/retrieval"
	"notionrag/store"
)

// fakeProvider is a deterministic Provider for chat and embeddings.
type fakeProvider struct {
	answer string
}

func (f *fakeProvider) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: f.answer}, nil
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		// Deterministic, non-zero, text-dependent.
		out[i] = []float32{1, float32(len(text)%7) + 1, float32(len(text)%3) + 1, 1}
	}
	return out, nil
}

type fakeSource struct {
	pages []notion.Page
	err   error
	block chan struct{} // if non-nil, LoadAll waits until closed
}

func (f *fakeSource) LoadAll(context.Context) ([]notion.Page, error) {
	if f.block != nil {
		<-f.block
	}
	return f.pages, f.err
}

func testPages() []notion.Page {
	return []notion.Page{
		{
			ID:    "pageA",
			Title: "Page A",
			URL:   "https://notion.so/Page-A-1",
			Blocks: []notion.Block{
				{ID: "h1", Type: notion.TypeHeading1, Text: "Intro"},
				{ID: "p1", Type: notion.TypeParagraph, Text: "Alpha content."},
				{ID: "h2", Type: notion.TypeHeading1, Text: "Details"},
				{ID: "p2", Type: notion.TypeParagraph, Text: "Beta content."},
			},
		},
		{
			ID:    "pageB",
			Title: "Page B",
			URL:   "https://notion.so/Page-B-2",
			Blocks: []notion.Block{
				{ID: "p3", Type: notion.TypeParagraph, Text: "Gamma content."},
			},
		},
	}
}

func newTestEngine(t *testing.T, src Source) *engine {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), 4)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	annot, err := images.NewAnnotator(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewAnnotator: %v", err)
	}

	provider := &fakeProvider{answer: "generated answer"}
	retriever := retrieval.New(s, provider)

	return &engine{
		cfg:      DefaultConfig(),
		source:   src,
		annot:    annot,
		chunkr:   chunker.New(chunker.Config{ChunkSize: 200, ChunkOverlap: 20}),
		store:    s,
		embedder: provider,
		composer: rag.New(provider, retriever.Search, rag.Config{}),
		coord:    newSyncCoordinator(),
	}
}

func TestSyncPipeline(t *testing.T) {
	e := newTestEngine(t, &fakeSource{pages: testPages()})
	ctx := context.Background()

	stats, err := e.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if stats.Pages != 2 {
		t.Errorf("Pages = %d, want 2", stats.Pages)
	}
	// Page A: two heading sections. Page B: one section.
	if stats.Chunks != 3 {
		t.Errorf("Chunks = %d, want 3", stats.Chunks)
	}
	if stats.Images != 0 {
		t.Errorf("Images = %d, want 0", stats.Images)
	}

	idx, err := e.IndexStats(ctx)
	if err != nil {
		t.Fatalf("IndexStats: %v", err)
	}
	if idx.TotalChunks != stats.Chunks {
		t.Errorf("index count = %d, want %d", idx.TotalChunks, stats.Chunks)
	}

	status := e.SyncStatus()
	if status.State != StateCompleted {
		t.Errorf("State = %q, want completed", status.State)
	}
	if status.Stats == nil || status.Stats.Chunks != stats.Chunks {
		t.Errorf("status stats = %+v, want %+v", status.Stats, stats)
	}

	resp, err := e.Answer(ctx, "what is alpha?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Answer != "generated answer" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if len(resp.Sources) == 0 {
		t.Error("expected at least one source")
	}
}

func TestSyncIdempotentAcrossRuns(t *testing.T) {
	e := newTestEngine(t, &fakeSource{pages: testPages()})
	ctx := context.Background()

	first, err := e.Sync(ctx)
	if err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	second, err := e.Sync(ctx)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}

	if *first != *second {
		t.Errorf("stats differ across runs: %+v vs %+v", first, second)
	}

	idx, err := e.IndexStats(ctx)
	if err != nil {
		t.Fatalf("IndexStats: %v", err)
	}
	if idx.TotalChunks != second.Chunks {
		t.Errorf("index count = %d after resync, want %d", idx.TotalChunks, second.Chunks)
	}
}

func TestSyncFailureSetsFailedState(t *testing.T) {
	e := newTestEngine(t, &fakeSource{err: errors.New("workspace unreachable")})

	_, err := e.Sync(context.Background())
	if err == nil {
		t.Fatal("expected sync error")
	}

	status := e.SyncStatus()
	if status.State != StateFailed {
		t.Errorf("State = %q, want failed", status.State)
	}
	if status.Error == "" {
		t.Error("status.Error should carry the failure")
	}
}

func TestConcurrentSyncRejected(t *testing.T) {
	block := make(chan struct{})
	e := newTestEngine(t, &fakeSource{pages: testPages(), block: block})

	runID, err := e.StartSync(context.Background())
	if err != nil {
		t.Fatalf("StartSync: %v", err)
	}
	if runID == "" {
		t.Fatal("StartSync returned empty run id")
	}
	if got := e.SyncStatus().State; got != StateRunning {
		t.Fatalf("State = %q, want running", got)
	}

	if _, err := e.Sync(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("concurrent Sync error = %v, want ErrSyncInProgress", err)
	}
	if _, err := e.StartSync(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("concurrent StartSync error = %v, want ErrSyncInProgress", err)
	}

	close(block)

	deadline := time.After(5 * time.Second)
	for e.SyncStatus().State == StateRunning {
		select {
		case <-deadline:
			t.Fatal("sync did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := e.SyncStatus().State; got != StateCompleted {
		t.Errorf("final State = %q, want completed", got)
	}
}

func TestSyncCoordinatorIgnoresStaleFinish(t *testing.T) {
	c := newSyncCoordinator()

	first, err := c.begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.finish(first, &SyncStats{Pages: 1}, nil)

	second, err := c.begin()
	if err != nil {
		t.Fatalf("second begin: %v", err)
	}

	// A late report from the first run must not clobber the second.
	c.finish(first, nil, errors.New("stale"))
	if got := c.status().State; got != StateRunning {
		t.Errorf("State = %q after stale finish, want running", got)
	}

	c.finish(second, &SyncStats{Pages: 2}, nil)
	if got := c.status(); got.State != StateCompleted || got.Stats.Pages != 2 {
		t.Errorf("status = %+v, want completed with second run's stats", got)
	}
}

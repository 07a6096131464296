// Package notionrag syncs a Notion workspace into a local vector index
// and answers questions about it with retrieval-augmented generation.
package notionrag

import (
	"context"
	"fmt"
	"log/slog"

	"notionrag/chunker"
	"notionrag/images"
	"notionrag/llm"
	"notionrag/notion"
	"notionrag/rag"
	"notionrag/retrieval"
	"notionrag/store"
)

// Engine is the main entry point.
type Engine interface {
	// Sync rebuilds the index from the configured workspace: clear,
	// load pages, annotate images, chunk, embed, upsert. Only one sync
	// may run at a time; a concurrent call returns ErrSyncInProgress.
	Sync(ctx context.Context) (*SyncStats, error)

	// StartSync launches Sync in the background and returns the run id
	// immediately. Progress is observable via SyncStatus.
	StartSync(ctx context.Context) (string, error)

	// SyncStatus reports the sync coordinator's current state.
	SyncStatus() SyncStatus

	// Answer runs the question through retrieval and generation.
	// history, if non-nil, is replayed as prior conversation turns.
	Answer(ctx context.Context, question string, history []llm.Message) (*rag.Response, error)

	// IndexStats reports the current size of the chunk index.
	IndexStats(ctx context.Context) (*IndexStats, error)

	// Close cleanly shuts down the engine.
	Close() error
}

// SyncStats summarises one completed sync pass.
type SyncStats struct {
	Pages  int `json:"pages"`
	Chunks int `json:"chunks"`
	Images int `json:"images"`
}

// IndexStats reports index size.
type IndexStats struct {
	TotalChunks int `json:"total_chunks"`
}

// Source loads parsed pages from the document workspace.
type Source interface {
	LoadAll(ctx context.Context) ([]notion.Page, error)
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg      Config
	source   Source
	annot    *images.Annotator
	chunkr   *chunker.Chunker
	store    *store.Store
	embedder llm.Provider
	composer *rag.Composer

	coord *syncCoordinator
}

// New creates an Engine with the given configuration.
func New(cfg Config) (Engine, error) {
	if cfg.Notion.Token == "" {
		return nil, fmt.Errorf("%w: notion token is required", ErrInvalidConfig)
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 1536
	}

	s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	embedLLM, err := llm.NewProvider(cfg.Embedding)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	var visionLLM llm.VisionProvider
	if cfg.Vision.Provider != "" {
		p, err := llm.NewProvider(cfg.Vision)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating vision provider: %w", err)
		}
		if vp, ok := p.(llm.VisionProvider); ok {
			visionLLM = vp
		}
	}

	imageDir := cfg.ImageDir
	if imageDir == "" {
		imageDir = DefaultConfig().ImageDir
	}
	annot, err := images.NewAnnotator(imageDir, visionLLM)
	if err != nil {
		s.Close()
		return nil, err
	}

	loader := notion.NewLoader(notion.NewClient(cfg.Notion))

	chunkr := chunker.New(chunker.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})

	retriever := retrieval.New(s, embedLLM)
	composer := rag.New(chatLLM, retriever.Search, rag.Config{
		Model: cfg.Chat.Model,
		TopK:  cfg.TopK,
	})

	return &engine{
		cfg:      cfg,
		source:   loader,
		annot:    annot,
		chunkr:   chunkr,
		store:    s,
		embedder: embedLLM,
		composer: composer,
		coord:    newSyncCoordinator(),
	}, nil
}

func (e *engine) Sync(ctx context.Context) (*SyncStats, error) {
	runID, err := e.coord.begin()
	if err != nil {
		return nil, err
	}

	stats, err := e.runSync(ctx)
	e.coord.finish(runID, stats, err)
	return stats, err
}

func (e *engine) StartSync(ctx context.Context) (string, error) {
	runID, err := e.coord.begin()
	if err != nil {
		return "", err
	}

	// Detach from the caller's deadline; the sync outlives the request
	// that triggered it.
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		stats, err := e.runSync(bgCtx)
		e.coord.finish(runID, stats, err)
	}()

	return runID, nil
}

func (e *engine) SyncStatus() SyncStatus {
	return e.coord.status()
}

// runSync executes one full resynchronisation. The pipeline is
// strictly sequential: pages, and images within a page, are processed
// in document order.
func (e *engine) runSync(ctx context.Context) (*SyncStats, error) {
	if err := e.store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clearing index: %w", err)
	}

	pages, err := e.source.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pages: %w", err)
	}

	stats := &SyncStats{Pages: len(pages)}

	for i := range pages {
		page := &pages[i]

		pageImages := page.Images()
		for _, img := range pageImages {
			*img = e.annot.Annotate(ctx, *img)
		}
		stats.Images += len(pageImages)

		chunks := e.chunkr.ChunkPage(page)
		if len(chunks) == 0 {
			slog.Info("sync: page produced no chunks", "page", page.ID, "title", page.Title)
			continue
		}

		texts := make([]string, len(chunks))
		for j, c := range chunks {
			texts[j] = c.Text
		}
		embeddings, err := llm.EmbedBatch(ctx, e.embedder, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding page %s: %w", page.ID, err)
		}

		if err := e.store.UpsertChunks(ctx, chunks, embeddings); err != nil {
			return nil, fmt.Errorf("indexing page %s: %w", page.ID, err)
		}

		stats.Chunks += len(chunks)
		slog.Info("sync: page indexed",
			"page", page.ID,
			"title", page.Title,
			"chunks", len(chunks),
			"images", len(pageImages),
		)
	}

	return stats, nil
}

func (e *engine) Answer(ctx context.Context, question string, history []llm.Message) (*rag.Response, error) {
	return e.composer.Answer(ctx, question, history)
}

func (e *engine) IndexStats(ctx context.Context) (*IndexStats, error) {
	n, err := e.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	return &IndexStats{TotalChunks: n}, nil
}

func (e *engine) Close() error {
	return e.store.Close()
}

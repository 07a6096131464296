package store

import "fmt"

// schemaSQL returns the DDL for the chunk index. embeddingDim controls
// the vec0 virtual table dimension. chunk_key is the stable pipeline
// id ({page}_{section}_{chunk}); the integer rowid bridges to vec0,
// which requires integer primary keys.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY,
    chunk_key TEXT NOT NULL UNIQUE,
    page_id TEXT NOT NULL,
    page_title TEXT NOT NULL,
    page_url TEXT NOT NULL,
    section_index INTEGER NOT NULL DEFAULT 0,
    image_paths JSON,
    content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_page ON chunks(page_id);

-- Vector embeddings via sqlite-vec, cosine metric
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);
`, embeddingDim)
}

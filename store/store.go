// Package store persists chunk text, metadata, and embeddings in a
// SQLite database with a sqlite-vec index for nearest-neighbour search.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"notionrag/chunker"
)

func init() {
	sqlite_vec.Auto()
}

// Result is one ranked match from a vector search. Score is
// 1 − cosine distance, higher is more relevant.
type Result struct {
	ChunkID      string   `json:"chunk_id"`
	Text         string   `json:"text"`
	PageID       string   `json:"page_id"`
	PageTitle    string   `json:"page_title"`
	PageURL      string   `json:"page_url"`
	ImagePaths   []string `json:"image_paths,omitempty"`
	SectionIndex int      `json:"section_index"`
	Score        float64  `json:"score"`
}

// Store wraps the SQLite database holding the chunk index.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, embeddingDim: embeddingDim}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// UpsertChunks writes chunks and their embeddings, overwriting any
// existing rows with the same chunk ids. chunks and embeddings must be
// parallel slices.
func (s *Store) UpsertChunks(ctx context.Context, chunks []chunker.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for i, chunk := range chunks {
			imagePaths, err := json.Marshal(chunk.ImagePaths)
			if err != nil {
				return fmt.Errorf("encoding image paths of %s: %w", chunk.ID, err)
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chunks (chunk_key, page_id, page_title, page_url, section_index, image_paths, content)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(chunk_key) DO UPDATE SET
					page_id = excluded.page_id,
					page_title = excluded.page_title,
					page_url = excluded.page_url,
					section_index = excluded.section_index,
					image_paths = excluded.image_paths,
					content = excluded.content
			`, chunk.ID, chunk.PageID, chunk.PageTitle, chunk.PageURL,
				chunk.Metadata.SectionIndex, string(imagePaths), chunk.Text); err != nil {
				return fmt.Errorf("upserting chunk %s: %w", chunk.ID, err)
			}

			var rowID int64
			if err := tx.QueryRowContext(ctx,
				"SELECT id FROM chunks WHERE chunk_key = ?", chunk.ID).Scan(&rowID); err != nil {
				return fmt.Errorf("resolving row id of %s: %w", chunk.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)",
				rowID, serializeFloat32(embeddings[i])); err != nil {
				return fmt.Errorf("upserting embedding of %s: %w", chunk.ID, err)
			}
		}
		return nil
	})
}

// Search performs a KNN search returning the top-k nearest chunks in
// descending relevance order.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_key, v.distance,
			c.content, c.page_id, c.page_title, c.page_url, c.section_index, c.image_paths
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var distance float64
		var imagePaths string
		if err := rows.Scan(&r.ChunkID, &distance,
			&r.Text, &r.PageID, &r.PageTitle, &r.PageURL, &r.SectionIndex, &imagePaths); err != nil {
			return nil, err
		}
		if imagePaths != "" && imagePaths != "null" {
			if err := json.Unmarshal([]byte(imagePaths), &r.ImagePaths); err != nil {
				return nil, fmt.Errorf("decoding image paths of %s: %w", r.ChunkID, err)
			}
		}
		// Relevance score from cosine distance.
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// Clear removes every chunk and embedding. A clear followed by a bulk
// upsert leaves Count equal to the number of upserted chunks.
func (s *Store) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks"); err != nil {
			return fmt.Errorf("clearing embeddings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
			return fmt.Errorf("clearing chunks: %w", err)
		}
		return nil
	})
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 encodes a vector in sqlite-vec's little-endian
// binary format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

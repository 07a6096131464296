package notionrag

import (
	"os"
	"path/filepath"

	"notionrag/llm"
	"notionrag/notion"
)

// Config holds all configuration for the engine.
type Config struct {
	// Notion configures workspace access: API token plus the database
	// and page ids to sync.
	Notion notion.ClientConfig `json:"notion" yaml:"notion"`

	// LLM providers. Vision describes page images and may be left
	// unconfigured, in which case descriptions fall back to captions.
	Chat      llm.Config `json:"chat" yaml:"chat"`
	Embedding llm.Config `json:"embedding" yaml:"embedding"`
	Vision    llm.Config `json:"vision" yaml:"vision"`

	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.notionrag/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not set: "home" (default) uses ~/.notionrag/, "local" the
	// working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// ImageDir is where downloaded page images are stored.
	ImageDir string `json:"image_dir" yaml:"image_dir"`

	// Chunking
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Retrieval
	TopK int `json:"top_k" yaml:"top_k"`

	// Embedding dimensions (must match the embedding model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// SyncSchedule is an optional cron expression for periodic resync,
	// evaluated by the server binary.
	SyncSchedule string `json:"sync_schedule" yaml:"sync_schedule"`
}

// DefaultConfig returns a Config with sensible defaults for hosted
// OpenAI inference. Database is stored in ~/.notionrag/notionrag.db.
func DefaultConfig() Config {
	return Config{
		Chat: llm.Config{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		Embedding: llm.Config{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Vision: llm.Config{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		DBName:       "notionrag",
		StorageDir:   "home",
		ImageDir:     filepath.Join("data", "images"),
		ChunkSize:    1000,
		ChunkOverlap: 200,
		TopK:         5,
		EmbeddingDim: 1536,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "notionrag"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".notionrag", name+".db")
	}
}

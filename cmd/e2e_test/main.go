package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"notionrag"
	"notionrag/llm"
)

// Live end-to-end smoke test: syncs a real workspace into a throwaway
// database and runs one question through retrieval and generation.
// Requires NOTION_TOKEN, OPENAI_API_KEY and NOTIONRAG_PAGE_ID.
func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	token := os.Getenv("NOTION_TOKEN")
	apiKey := os.Getenv("OPENAI_API_KEY")
	pageID := os.Getenv("NOTIONRAG_PAGE_ID")
	if token == "" || apiKey == "" || pageID == "" {
		fmt.Fprintln(os.Stderr, "NOTION_TOKEN, OPENAI_API_KEY and NOTIONRAG_PAGE_ID must be set")
		os.Exit(1)
	}

	tmpDir, _ := os.MkdirTemp("", "notionrag-e2e-*")
	defer os.RemoveAll(tmpDir)

	cfg := notionrag.DefaultConfig()
	cfg.DBPath = tmpDir + "/test.db"
	cfg.ImageDir = tmpDir + "/images"
	cfg.Notion.Token = token
	cfg.Notion.PageIDs = []string{pageID}
	cfg.Chat.APIKey = apiKey
	cfg.Embedding.APIKey = apiKey
	cfg.Vision = llm.Config{} // skip image description, faster for this test

	engine, err := notionrag.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n=== SYNCING page %s ===\n", pageID)
	stats, err := engine.Sync(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Synced pages=%d chunks=%d images=%d\n",
		stats.Pages, stats.Chunks, stats.Images)

	question := "What is this page about?"
	fmt.Fprintf(os.Stderr, "\n=== ASKING: %s ===\n", question)
	resp, err := engine.Answer(ctx, question, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "\n=== ANSWER ===\n%s\n", resp.Answer)

	out, _ := json.MarshalIndent(resp.Sources, "", "  ")
	fmt.Println(string(out))
}

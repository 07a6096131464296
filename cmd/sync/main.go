package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"notionrag"
)

// One-shot resync: load config, rebuild the index, print stats, exit.
func main() {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	envPath := flag.String("env", "", "Path to .env file (default: .env if present)")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall sync timeout")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			slog.Error("loading env file", "path", *envPath, "error", err)
			os.Exit(1)
		}
	} else {
		godotenv.Load()
	}

	cfg := notionrag.DefaultConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			slog.Error("reading config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		switch strings.ToLower(filepath.Ext(*configPath)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &cfg)
		default:
			err = json.Unmarshal(data, &cfg)
		}
		if err != nil {
			slog.Error("parsing config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	if v := os.Getenv("NOTIONRAG_NOTION_TOKEN"); v != "" {
		cfg.Notion.Token = v
	}
	if cfg.Notion.Token == "" {
		cfg.Notion.Token = os.Getenv("NOTION_TOKEN")
	}
	if cfg.Chat.APIKey == "" && cfg.Chat.Provider == "openai" {
		cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Vision.APIKey == "" && cfg.Vision.Provider == "openai" {
		cfg.Vision.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	engine, err := notionrag.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	stats, err := engine.Sync(ctx)
	if err != nil {
		slog.Error("sync failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("synced %d pages into %d chunks (%d images) in %s\n",
		stats.Pages, stats.Chunks, stats.Images, time.Since(start).Round(time.Second))
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"notionrag"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	envPath := flag.String("env", "", "Path to .env file (default: .env if present)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	loadDotEnv(*envPath)

	cfg := notionrag.DefaultConfig()
	if *configPath != "" {
		if err := loadConfigFile(*configPath, &cfg); err != nil {
			slog.Error("loading config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	applyEnvOverrides(&cfg)

	apiKey := os.Getenv("NOTIONRAG_API_KEY")
	corsOrigins := os.Getenv("NOTIONRAG_CORS_ORIGINS")

	engine, err := notionrag.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /sync", h.handleSync)
	mux.HandleFunc("GET /sync/status", h.handleSyncStatus)
	mux.HandleFunc("GET /stats", h.handleStats)
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.Handle("GET /images/", http.StripPrefix("/images/",
		http.FileServer(http.Dir(cfg.ImageDir))))

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	// Optional periodic resync.
	var scheduler *cron.Cron
	if cfg.SyncSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.SyncSchedule, func() {
			runID, err := engine.StartSync(context.Background())
			if err != nil {
				slog.Warn("scheduled sync skipped", "error", err)
				return
			}
			slog.Info("scheduled sync started", "run_id", runID)
		})
		if err != nil {
			slog.Error("invalid sync schedule", "schedule", cfg.SyncSchedule, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		slog.Info("sync scheduler active", "schedule", cfg.SyncSchedule)
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // chat responses can be slow
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// loadDotEnv loads environment variables from a .env file. An explicit
// path must exist; the implicit default ".env" may be absent.
func loadDotEnv(path string) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			slog.Error("loading env file", "path", path, "error", err)
			os.Exit(1)
		}
		return
	}
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env")
	}
}

// loadConfigFile decodes a YAML or JSON config file over cfg.
func loadConfigFile(path string, cfg *notionrag.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// applyEnvOverrides layers environment variables over the file config.
func applyEnvOverrides(cfg *notionrag.Config) {
	if v := os.Getenv("NOTIONRAG_NOTION_TOKEN"); v != "" {
		cfg.Notion.Token = v
	}
	if v := os.Getenv("NOTIONRAG_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("NOTIONRAG_IMAGE_DIR"); v != "" {
		cfg.ImageDir = v
	}
	if v := os.Getenv("NOTIONRAG_SYNC_SCHEDULE"); v != "" {
		cfg.SyncSchedule = v
	}
	if v := os.Getenv("NOTIONRAG_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("NOTIONRAG_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("NOTIONRAG_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("NOTIONRAG_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("NOTIONRAG_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("NOTIONRAG_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("NOTIONRAG_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("NOTIONRAG_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("NOTIONRAG_VISION_PROVIDER"); v != "" {
		cfg.Vision.Provider = v
	}
	if v := os.Getenv("NOTIONRAG_VISION_MODEL"); v != "" {
		cfg.Vision.Model = v
	}
	if v := os.Getenv("NOTIONRAG_VISION_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}

	// Fallback: well-known provider env vars.
	if cfg.Notion.Token == "" {
		cfg.Notion.Token = os.Getenv("NOTION_TOKEN")
	}
	fallbackKey(cfg.Chat.Provider, &cfg.Chat.APIKey)
	fallbackKey(cfg.Embedding.Provider, &cfg.Embedding.APIKey)
	fallbackKey(cfg.Vision.Provider, &cfg.Vision.APIKey)
}

func fallbackKey(provider string, key *string) {
	if *key != "" {
		return
	}
	switch provider {
	case "openai":
		*key = os.Getenv("OPENAI_API_KEY")
	case "gemini":
		*key = os.Getenv("GEMINI_API_KEY")
	}
}

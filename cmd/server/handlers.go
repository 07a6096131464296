package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"notionrag"
	"notionrag/llm"
)

type handler struct {
	engine notionrag.Engine
}

func newHandler(e notionrag.Engine) *handler {
	return &handler{engine: e}
}

// GET /
func (h *handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "notionrag",
		"status":  "running",
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// POST /sync
// Starts a background resync and returns immediately. A sync already
// in flight yields 409.
func (h *handler) handleSync(w http.ResponseWriter, r *http.Request) {
	runID, err := h.engine.StartSync(r.Context())
	if err != nil {
		if errors.Is(err, notionrag.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "sync already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start sync")
		slog.Error("sync start error", "error", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"state":  string(notionrag.StateRunning),
	})
}

// GET /sync/status
func (h *handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.SyncStatus())
}

// GET /stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.IndexStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read index stats")
		slog.Error("stats error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// POST /chat
func (h *handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Question string `json:"question"`
		History  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"history,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	var history []llm.Message
	for _, m := range req.History {
		if m.Role != "user" && m.Role != "assistant" {
			writeError(w, http.StatusBadRequest, "history roles must be user or assistant")
			return
		}
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := h.engine.Answer(ctx, req.Question, history)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "chat failed")
		slog.Error("chat error", "question", req.Question, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

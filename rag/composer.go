// Package rag turns retrieved chunks into a grounded answer via a
// language model.
package rag

import (
	"context"
	"fmt"

	"notionrag/llm"
	"notionrag/store"
)

// NoResultsAnswer is returned verbatim when retrieval finds nothing;
// no generation call is made in that case.
const NoResultsAnswer = "I'm sorry, but I couldn't find any information related to your question in the documents."

// SearchFunc retrieves up to topK chunks relevant to query, most
// relevant first.
type SearchFunc func(ctx context.Context, query string, topK int) ([]store.Result, error)

// Source names one page backing an answer.
type Source struct {
	PageTitle string  `json:"page_title"`
	PageURL   string  `json:"page_url"`
	Score     float64 `json:"score"`
}

// Response is a composed answer. Sources keep retrieval rank order;
// ImagePaths is a deduplicated set with no ordering guarantee.
type Response struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	ImagePaths []string `json:"image_paths"`
}

// Config controls answer generation.
type Config struct {
	Model       string
	TopK        int     // retrieval depth, default 5
	Temperature float64 // default 0.3, low for grounded answers
	MaxTokens   int     // default 2000
}

// Composer runs the retrieve-then-generate flow.
type Composer struct {
	chat   llm.Provider
	search SearchFunc
	cfg    Config
}

// New returns a Composer using chat for generation and search for
// retrieval. Zero-value config fields get defaults.
func New(chat llm.Provider, search SearchFunc, cfg Config) *Composer {
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	return &Composer{chat: chat, search: search, cfg: cfg}
}

// Answer retrieves context for the question and generates an answer.
// history, if non-empty, is replayed between the system prompt and the
// current question in conversation order. Generation failures surface
// as errors with no partial answer.
func (c *Composer) Answer(ctx context.Context, question string, history []llm.Message) (*Response, error) {
	results, err := c.search(ctx, question, c.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	if len(results) == 0 {
		return &Response{
			Answer:     NoResultsAnswer,
			Sources:    []Source{},
			ImagePaths: []string{},
		}, nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: userPrompt(formatContext(results), question),
	})

	resp, err := c.chat.Chat(ctx, llm.ChatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{
			PageTitle: r.PageTitle,
			PageURL:   r.PageURL,
			Score:     r.Score,
		})
	}

	return &Response{
		Answer:     resp.Content,
		Sources:    sources,
		ImagePaths: collectImagePaths(results),
	}, nil
}

// collectImagePaths gathers every result's image paths into a
// deduplicated set.
func collectImagePaths(results []store.Result) []string {
	seen := make(map[string]struct{})
	paths := []string{}
	for _, r := range results {
		for _, p := range r.ImagePaths {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}
	return paths
}

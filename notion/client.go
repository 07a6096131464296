package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"
	pageSize       = 100

	maxRetries     = 4
	baseRetryDelay = 2 * time.Second
)

// ClientConfig configures access to the Notion API.
type ClientConfig struct {
	Token       string   `json:"token" yaml:"token"`
	BaseURL     string   `json:"base_url" yaml:"base_url"`
	DatabaseIDs []string `json:"database_ids" yaml:"database_ids"`
	PageIDs     []string `json:"page_ids" yaml:"page_ids"`
}

// Client talks to the Notion REST API. Pagination is materialized
// fully before any call returns.
type Client struct {
	cfg    ClientConfig
	client *http.Client
}

// NewClient returns a Client for the given configuration.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// GetPage fetches a single page record.
func (c *Client) GetPage(ctx context.Context, pageID string) (*RawPage, error) {
	body, err := c.do(ctx, "GET", "/v1/pages/"+url.PathEscape(pageID), nil)
	if err != nil {
		return nil, err
	}
	var page RawPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decoding page %s: %w", pageID, err)
	}
	return &page, nil
}

// GetPageBlocks fetches the full block tree of a page. Children of
// nested blocks are fetched recursively and attached in place.
func (c *Client) GetPageBlocks(ctx context.Context, pageID string) ([]RawBlock, error) {
	return c.blockChildren(ctx, pageID)
}

func (c *Client) blockChildren(ctx context.Context, blockID string) ([]RawBlock, error) {
	var blocks []RawBlock
	cursor := ""

	for {
		path := fmt.Sprintf("/v1/blocks/%s/children?page_size=%d", url.PathEscape(blockID), pageSize)
		if cursor != "" {
			path += "&start_cursor=" + url.QueryEscape(cursor)
		}
		body, err := c.do(ctx, "GET", path, nil)
		if err != nil {
			return nil, err
		}

		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decoding block children of %s: %w", blockID, err)
		}

		for _, raw := range resp.Results {
			var block RawBlock
			if err := json.Unmarshal(raw, &block); err != nil {
				return nil, fmt.Errorf("decoding block record: %w", err)
			}
			if block.HasChildren {
				children, err := c.blockChildren(ctx, block.ID)
				if err != nil {
					return nil, err
				}
				block.Children = children
			}
			blocks = append(blocks, block)
		}

		if !resp.HasMore {
			return blocks, nil
		}
		cursor = resp.NextCursor
	}
}

// QueryDatabase lists every page record in a database.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string) ([]RawPage, error) {
	var pages []RawPage
	cursor := ""

	for {
		req := map[string]any{"page_size": pageSize}
		if cursor != "" {
			req["start_cursor"] = cursor
		}
		body, err := c.do(ctx, "POST", "/v1/databases/"+url.PathEscape(databaseID)+"/query", req)
		if err != nil {
			return nil, err
		}

		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decoding database query for %s: %w", databaseID, err)
		}

		for _, raw := range resp.Results {
			var page RawPage
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, fmt.Errorf("decoding page record: %w", err)
			}
			pages = append(pages, page)
		}

		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// GetAllPages returns the page records of every configured database
// plus every directly configured page, in configuration order.
func (c *Client) GetAllPages(ctx context.Context) ([]RawPage, error) {
	var all []RawPage

	for _, dbID := range c.cfg.DatabaseIDs {
		pages, err := c.QueryDatabase(ctx, dbID)
		if err != nil {
			return nil, fmt.Errorf("querying database %s: %w", dbID, err)
		}
		all = append(all, pages...)
	}

	for _, pageID := range c.cfg.PageIDs {
		page, err := c.GetPage(ctx, pageID)
		if err != nil {
			return nil, fmt.Errorf("fetching page %s: %w", pageID, err)
		}
		all = append(all, *page)
	}

	return all, nil
}

// retryableStatusCode returns true for HTTP status codes that warrant a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	u := c.cfg.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1))
			slog.Warn("notion: retrying request",
				"url", u,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reader io.Reader
		if data != nil {
			reader = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Notion-Version", apiVersion)
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("notion request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading notion response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = fmt.Errorf("notion api error %d: %s", resp.StatusCode, string(respBody))
		if !retryableStatusCode(resp.StatusCode) {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("notion request failed after %d attempts: %w", maxRetries+1, lastErr)
}

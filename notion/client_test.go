package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetPageBlocksPaginatesAndRecurses(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)

		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Notion-Version"); got != "2022-06-28" {
			t.Errorf("Notion-Version = %q", got)
		}

		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/blocks/root/"):
			if r.URL.Query().Get("start_cursor") == "" {
				fmt.Fprint(w, `{
					"results": [
						{"id": "b1", "type": "paragraph", "paragraph": {"rich_text": [{"plain_text": "one"}]}},
						{"id": "b2", "type": "toggle", "has_children": true, "toggle": {"rich_text": [{"plain_text": "two"}]}}
					],
					"has_more": true,
					"next_cursor": "cur-1"
				}`)
				return
			}
			fmt.Fprint(w, `{
				"results": [
					{"id": "b3", "type": "paragraph", "paragraph": {"rich_text": [{"plain_text": "three"}]}}
				],
				"has_more": false
			}`)
		case strings.HasPrefix(r.URL.Path, "/v1/blocks/b2/"):
			fmt.Fprint(w, `{
				"results": [
					{"id": "b2a", "type": "paragraph", "paragraph": {"rich_text": [{"plain_text": "nested"}]}}
				],
				"has_more": false
			}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "secret", BaseURL: srv.URL})
	blocks, err := c.GetPageBlocks(context.Background(), "root")
	if err != nil {
		t.Fatalf("GetPageBlocks: %v", err)
	}

	if len(blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(blocks))
	}
	if blocks[0].ID != "b1" || blocks[1].ID != "b2" || blocks[2].ID != "b3" {
		t.Errorf("block order = %s, %s, %s", blocks[0].ID, blocks[1].ID, blocks[2].ID)
	}
	if len(blocks[1].Children) != 1 || blocks[1].Children[0].ID != "b2a" {
		t.Errorf("children of b2 = %+v", blocks[1].Children)
	}
	// Both cursor fetches for root plus one for the nested block.
	if len(requests) != 3 {
		t.Errorf("request count = %d, want 3", len(requests))
	}
}

func TestGetAllPagesConfigurationOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/databases/db1/query":
			if r.Method != http.MethodPost {
				t.Errorf("query method = %s", r.Method)
			}
			fmt.Fprint(w, `{
				"results": [
					{"id": "dp1", "url": "https://notion.so/One-dp1"},
					{"id": "dp2", "url": "https://notion.so/Two-dp2"}
				],
				"has_more": false
			}`)
		case "/v1/pages/solo":
			fmt.Fprint(w, `{"id": "solo", "url": "https://notion.so/Solo-solo"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		Token:       "secret",
		BaseURL:     srv.URL,
		DatabaseIDs: []string{"db1"},
		PageIDs:     []string{"solo"},
	})

	pages, err := c.GetAllPages(context.Background())
	if err != nil {
		t.Fatalf("GetAllPages: %v", err)
	}

	var got []string
	for _, p := range pages {
		got = append(got, p.ID)
	}
	want := []string{"dp1", "dp2", "solo"}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("page ids = %v, want %v", got, want)
		}
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message": "no access"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "secret", BaseURL: srv.URL})
	_, err := c.GetPage(context.Background(), "p1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %v, want status in message", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 403)", calls)
	}
}

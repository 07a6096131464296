package rag

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"notionrag/llm"
	"notionrag/store"
)

// fakeChat records chat requests and replies with a fixed answer.
type fakeChat struct {
	answer  string
	err     error
	calls   int
	lastReq llm.ChatRequest
}

func (f *fakeChat) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.answer}, nil
}

func (f *fakeChat) Embed(context.Context, []string) ([][]float32, error) {
	return nil, nil
}

func fixedSearch(results []store.Result) SearchFunc {
	return func(context.Context, string, int) ([]store.Result, error) {
		return results, nil
	}
}

func TestAnswerNoResults(t *testing.T) {
	chat := &fakeChat{answer: "should not be called"}
	c := New(chat, fixedSearch(nil), Config{})

	resp, err := c.Answer(context.Background(), "anything?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if resp.Answer != NoResultsAnswer {
		t.Errorf("Answer = %q, want fixed apology", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("Sources = %v, want empty", resp.Sources)
	}
	if len(resp.ImagePaths) != 0 {
		t.Errorf("ImagePaths = %v, want empty", resp.ImagePaths)
	}
	if chat.calls != 0 {
		t.Errorf("generation model called %d times, want 0", chat.calls)
	}
}

func TestAnswerFormatsContextInRankOrder(t *testing.T) {
	results := []store.Result{
		{Text: "alpha text", PageTitle: "Alpha", PageURL: "https://n/a", Score: 0.9},
		{Text: "beta text", PageTitle: "Beta", PageURL: "https://n/b", Score: 0.7},
	}
	chat := &fakeChat{answer: "the answer"}
	c := New(chat, fixedSearch(results), Config{})

	resp, err := c.Answer(context.Background(), "what is alpha?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Answer != "the answer" {
		t.Errorf("Answer = %q", resp.Answer)
	}

	if chat.calls != 1 {
		t.Fatalf("generation model called %d times, want 1", chat.calls)
	}
	user := chat.lastReq.Messages[len(chat.lastReq.Messages)-1]
	wantFirst := "information 1 (page: Alpha)\nalpha text"
	wantSecond := "information 2 (page: Beta)\nbeta text"
	if !strings.Contains(user.Content, wantFirst) {
		t.Errorf("prompt missing %q:\n%s", wantFirst, user.Content)
	}
	if !strings.Contains(user.Content, wantSecond) {
		t.Errorf("prompt missing %q:\n%s", wantSecond, user.Content)
	}
	if strings.Index(user.Content, wantFirst) > strings.Index(user.Content, wantSecond) {
		t.Error("context blocks out of rank order")
	}
	if !strings.Contains(user.Content, "\n---\n") {
		t.Error("context blocks not divider-separated")
	}
	if !strings.Contains(user.Content, "what is alpha?") {
		t.Error("prompt missing the literal question")
	}

	if chat.lastReq.Temperature != 0.3 {
		t.Errorf("Temperature = %f, want 0.3", chat.lastReq.Temperature)
	}

	wantSources := []Source{
		{PageTitle: "Alpha", PageURL: "https://n/a", Score: 0.9},
		{PageTitle: "Beta", PageURL: "https://n/b", Score: 0.7},
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(resp.Sources))
	}
	for i, want := range wantSources {
		if resp.Sources[i] != want {
			t.Errorf("Sources[%d] = %+v, want %+v", i, resp.Sources[i], want)
		}
	}
}

func TestAnswerDeduplicatesImagePaths(t *testing.T) {
	results := []store.Result{
		{Text: "a", PageTitle: "A", Score: 0.9, ImagePaths: []string{"/img/shared.png", "/img/a.png"}},
		{Text: "b", PageTitle: "B", Score: 0.7, ImagePaths: []string{"/img/shared.png"}},
	}
	c := New(&fakeChat{answer: "ok"}, fixedSearch(results), Config{})

	resp, err := c.Answer(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// Set membership only; ordering is not part of the contract.
	got := append([]string(nil), resp.ImagePaths...)
	sort.Strings(got)
	want := []string{"/img/a.png", "/img/shared.png"}
	if len(got) != len(want) {
		t.Fatalf("ImagePaths = %v, want set %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ImagePaths set = %v, want %v", got, want)
		}
	}
}

func TestAnswerReplaysHistoryInOrder(t *testing.T) {
	results := []store.Result{{Text: "ctx", PageTitle: "P", Score: 0.5}}
	chat := &fakeChat{answer: "ok"}
	c := New(chat, fixedSearch(results), Config{})

	history := []llm.Message{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
	}
	if _, err := c.Answer(context.Background(), "followup", history); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	msgs := chat.lastReq.Messages
	if len(msgs) != 4 {
		t.Fatalf("len(messages) = %d, want 4 (system, 2 history, user)", len(msgs))
	}
	if msgs[0].Role != "system" {
		t.Errorf("messages[0].Role = %q, want system", msgs[0].Role)
	}
	if msgs[1].Content != "first question" || msgs[2].Content != "first answer" {
		t.Errorf("history out of order: %+v", msgs[1:3])
	}
	if msgs[3].Role != "user" || !strings.Contains(msgs[3].Content, "followup") {
		t.Errorf("final message = %+v, want current question", msgs[3])
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	results := []store.Result{{Text: "ctx", PageTitle: "P", Score: 0.5}}
	c := New(&fakeChat{err: errors.New("quota exceeded")}, fixedSearch(results), Config{})

	resp, err := c.Answer(context.Background(), "q", nil)
	if err == nil {
		t.Fatal("expected error from generation failure")
	}
	if resp != nil {
		t.Errorf("resp = %+v, want nil (no partial answer)", resp)
	}
}

func TestAnswerSearchFailure(t *testing.T) {
	failing := func(context.Context, string, int) ([]store.Result, error) {
		return nil, errors.New("index unavailable")
	}
	chat := &fakeChat{answer: "unused"}
	c := New(chat, failing, Config{})

	if _, err := c.Answer(context.Background(), "q", nil); err == nil {
		t.Fatal("expected error from search failure")
	}
	if chat.calls != 0 {
		t.Errorf("generation model called %d times, want 0", chat.calls)
	}
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/defi-sentinel/internal/cache"
	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
)

func TestAnthropicCompleteSendsPromptAndJoinsText(t *testing.T) {
	var body map[string]any
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "test-model",
			"content": [{"type": "text", "text": "{\"action_plan\":"}, {"type": "text", "text": "{}}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	client := NewAnthropic(AnthropicOptions{APIKey: "sk-test", Model: "test-model", BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	got, err := client.Complete(context.Background(), "be careful", "alert text")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != `{"action_plan":{}}` {
		t.Fatalf("unexpected completion: %q", got)
	}
	if gotKey != "sk-test" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if body["model"] != "test-model" {
		t.Fatalf("unexpected model in request: %v", body["model"])
	}
	if _, ok := body["system"]; !ok {
		t.Fatal("expected system prompt in request")
	}
}

func TestAnthropicCompleteMapsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	client := NewAnthropic(AnthropicOptions{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	_, err := client.Complete(context.Background(), "", "alert")
	if !clierr.HasCode(err, clierr.CodeLLM) {
		t.Fatalf("expected llm error code, got %v", err)
	}
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{Reason: "ANTHROPIC_API_KEY is not set"}.Complete(context.Background(), "", "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Fatalf("expected reason in error, got %v", err)
	}
}

func TestCachedServesRepeatPrompts(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.Open(filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	calls := 0
	next := CompleterFunc(func(_ context.Context, system, user string) (string, error) {
		calls++
		return "reply to " + user, nil
	})
	cached := NewCached(next, store, "m", time.Hour, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := cached.Complete(ctx, "sys", "alert A")
		if err != nil || got != "reply to alert A" {
			t.Fatalf("unexpected completion %q err=%v", got, err)
		}
	}
	if _, err := cached.Complete(ctx, "sys", "alert B"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected two upstream calls, got %d", calls)
	}
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.Open(filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fail := true
	next := CompleterFunc(func(context.Context, string, string) (string, error) {
		if fail {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	cached := NewCached(next, store, "m", time.Hour, nil)
	if _, err := cached.Complete(context.Background(), "", "x"); err == nil {
		t.Fatal("expected upstream error")
	}
	fail = false
	if got, err := cached.Complete(context.Background(), "", "x"); err != nil || got != "ok" {
		t.Fatalf("expected retry to reach upstream, got %q err=%v", got, err)
	}
}

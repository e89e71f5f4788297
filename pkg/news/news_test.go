package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testConfig(searchURL string) Config {
	return Config{
		SerperKey:   "test-key",
		Timeout:     2 * time.Second,
		MaxRetries:  2,
		BackoffBase: time.Millisecond,
		SearchURL:   searchURL,
	}
}

func TestSearch_MissingKeyNoNetwork(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.SerperKey = ""
	c := NewClient(cfg, nil)

	items, err := c.Search(context.Background(), "run", "SRAG Brasil", 5)
	if err != nil {
		t.Fatalf("Search without key: %v", err)
	}
	if items != nil {
		t.Errorf("items = %v, want nil", items)
	}
	if calls != 0 {
		t.Errorf("network calls = %d, want 0", calls)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	c := NewClient(testConfig("http://127.0.0.1:1"), nil)
	items, err := c.Search(context.Background(), "run", "   ", 5)
	if err != nil || items != nil {
		t.Errorf("Search with empty query = (%v, %v), want (nil, nil)", items, err)
	}
}

func TestSearch_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "test-key" {
			t.Errorf("X-API-KEY = %q, want test-key", got)
		}
		w.Write([]byte(`{"news":[
			{"title":" Casos de SRAG sobem ","source":"G1","link":"https://g1/x","date":"2025-03-01"},
			{"title":"Boletim","source":"Fiocruz","link":"https://fiocruz/y","publishedDate":"2025-03-02"}
		]}`))
	}))
	defer ts.Close()

	c := NewClient(testConfig(ts.URL), nil)
	items, err := c.Search(context.Background(), "run", "SRAG Brasil", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Title != "Casos de SRAG sobem" {
		t.Errorf("title = %q, want trimmed", items[0].Title)
	}
	if items[1].Date != "2025-03-02" {
		t.Errorf("date = %q, want publishedDate fallback", items[1].Date)
	}
}

func TestSearch_RetriesOn5xx(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"news":[{"title":"ok","source":"s","link":"l","date":"d"}]}`))
	}))
	defer ts.Close()

	c := NewClient(testConfig(ts.URL), nil)
	items, err := c.Search(context.Background(), "run", "SRAG", 5)
	if err != nil {
		t.Fatalf("Search with retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(items) != 1 {
		t.Errorf("items = %d, want 1", len(items))
	}
}

func TestSearch_ExhaustedRetries(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewClient(testConfig(ts.URL), nil)
	items, err := c.Search(context.Background(), "run", "SRAG", 5)
	if err == nil {
		t.Error("expected error after exhausted retries")
	}
	if items != nil {
		t.Errorf("items = %v, want nil", items)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (MaxRetries+1)", attempts)
	}
}

func TestSearch_ClientErrorNoRetry(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	c := NewClient(testConfig(ts.URL), nil)
	if _, err := c.Search(context.Background(), "run", "SRAG", 5); err == nil {
		t.Error("expected error for HTTP 403")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (4xx is final)", attempts)
	}
}

func TestSearch_LimitClamped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"news":[
			{"title":"a"},{"title":"b"},{"title":"c"}
		]}`))
	}))
	defer ts.Close()

	c := NewClient(testConfig(ts.URL), nil)
	items, err := c.Search(context.Background(), "run", "SRAG", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("items = %d, want 2 (limit applied)", len(items))
	}
}

func TestSummarize_EmptyItems(t *testing.T) {
	c := NewClient(Config{OpenAIKey: "k"}, nil)
	if got := c.Summarize(context.Background(), "run", nil); got != NoItemsMessage {
		t.Errorf("Summarize(nil) = %q, want %q", got, NoItemsMessage)
	}
}

func TestSummarize_MissingKey(t *testing.T) {
	c := NewClient(Config{}, nil)
	items := []Item{{Title: "t", Source: "s", Link: "l"}}
	if got := c.Summarize(context.Background(), "run", items); got != NoCredentialsMessage {
		t.Errorf("Summarize without key = %q, want %q", got, NoCredentialsMessage)
	}
}

func TestSummarize_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "cmpl-1", "object": "chat.completion",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "  Panorama estável.  "}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer ts.Close()

	cfg := Config{
		OpenAIKey:     "k",
		Timeout:       2 * time.Second,
		MaxRetries:    1,
		BackoffBase:   time.Millisecond,
		OpenAIBaseURL: ts.URL + "/v1",
	}
	c := NewClient(cfg, nil)
	items := []Item{{Title: "t", Source: "s", Link: "l"}}
	if got := c.Summarize(context.Background(), "run", items); got != "Panorama estável." {
		t.Errorf("Summarize = %q, want trimmed content", got)
	}
}

func TestSummarize_BackendDown(t *testing.T) {
	cfg := Config{
		OpenAIKey:     "k",
		Timeout:       500 * time.Millisecond,
		MaxRetries:    1,
		BackoffBase:   time.Millisecond,
		OpenAIBaseURL: "http://127.0.0.1:1/v1",
	}
	c := NewClient(cfg, nil)
	items := []Item{{Title: "t"}}
	if got := c.Summarize(context.Background(), "run", items); got != UnavailableMessage {
		t.Errorf("Summarize with backend down = %q, want %q", got, UnavailableMessage)
	}
}

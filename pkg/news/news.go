package news

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hazyhaar/sentinela/pkg/audit"
)

// Fallback strings shown in the report when news are unavailable.
const (
	NoItemsMessage       = "Sem notícias recentes encontradas."
	NoCredentialsMessage = "Resumo de notícias indisponível (OPENAI_API_KEY ausente)."
	UnavailableMessage   = "Resumo de notícias indisponível no momento."
)

const defaultSearchURL = "https://google.serper.dev/news"

// Item is one news headline.
type Item struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	Link   string `json:"link"`
	Date   string `json:"date"`
}

// Config holds credentials and retry parameters for the news collaborators.
type Config struct {
	SerperKey   string
	OpenAIKey   string
	OpenAIModel string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration

	// SearchURL and OpenAIBaseURL override the endpoints, for tests.
	SearchURL     string
	OpenAIBaseURL string
}

// Client searches and summarizes news. Its failures are routine: Search
// reports them as a (nil, err) result and Summarize degrades to a fallback
// string; neither ever aborts the pipeline.
type Client struct {
	cfg   Config
	http  *http.Client
	audit *audit.Log
}

// NewClient creates a Client. auditLog may be nil.
func NewClient(cfg Config, auditLog *audit.Log) *Client {
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = defaultSearchURL
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		audit: auditLog,
	}
}

// Search queries the Serper news endpoint. Without a configured key or with
// an empty query it returns (nil, nil) before any network call; transient
// HTTP failures (429/5xx, transport errors) are retried with exponential
// backoff, anything final yields (nil, err) for the caller to absorb.
func (c *Client) Search(ctx context.Context, runID, query string, limit int) ([]Item, error) {
	q := strings.TrimSpace(query)
	if strings.TrimSpace(c.cfg.SerperKey) == "" {
		c.audit.Event(runID, "serper.disabled", map[string]any{"reason": "missing_api_key"})
		return nil, nil
	}
	if q == "" {
		c.audit.Event(runID, "serper.skip", map[string]any{"reason": "empty_query"})
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 10 {
		limit = 10
	}

	payload, err := json.Marshal(map[string]any{"q": q, "num": limit})
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleepBackoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		items, retry, err := c.searchOnce(ctx, runID, q, payload, limit, attempt)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}
	c.audit.Event(runID, "serper.fail", map[string]any{"error": lastErr.Error()})
	return nil, fmt.Errorf("news search failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) searchOnce(ctx context.Context, runID, q string, payload []byte, limit, attempt int) (items []Item, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SearchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.cfg.SerperKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.audit.Event(runID, "serper.retry", map[string]any{"attempt": attempt, "error": err.Error()})
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == 429 || resp.StatusCode >= 500:
		c.audit.Event(runID, "serper.retry", map[string]any{"attempt": attempt, "status": resp.StatusCode, "query": q})
		return nil, true, fmt.Errorf("HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		c.audit.Event(runID, "serper.client_error", map[string]any{"status": resp.StatusCode, "query": q})
		return nil, false, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	var parsed struct {
		News []struct {
			Title         string `json:"title"`
			Source        string `json:"source"`
			Link          string `json:"link"`
			Date          string `json:"date"`
			PublishedDate string `json:"publishedDate"`
		} `json:"news"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.audit.Event(runID, "serper.json_error", map[string]any{"attempt": attempt, "error": err.Error()})
		return nil, true, fmt.Errorf("decode search response: %w", err)
	}

	if len(parsed.News) > limit {
		parsed.News = parsed.News[:limit]
	}
	items = make([]Item, 0, len(parsed.News))
	for _, n := range parsed.News {
		date := n.Date
		if date == "" {
			date = n.PublishedDate
		}
		items = append(items, Item{
			Title:  strings.TrimSpace(n.Title),
			Source: strings.TrimSpace(n.Source),
			Link:   strings.TrimSpace(n.Link),
			Date:   strings.TrimSpace(date),
		})
	}
	return items, false, nil
}

// Summarize produces a short analyst-style summary of the headlines. It
// always returns presentable text: empty input, missing credentials and
// exhausted retries all map to fixed fallback strings.
func (c *Client) Summarize(ctx context.Context, runID string, items []Item) string {
	if len(items) == 0 {
		return NoItemsMessage
	}
	if strings.TrimSpace(c.cfg.OpenAIKey) == "" {
		c.audit.Event(runID, "openai.disabled", map[string]any{"reason": "missing_api_key"})
		return NoCredentialsMessage
	}

	var bullets strings.Builder
	for _, it := range items {
		fmt.Fprintf(&bullets, "- %s (%s) – %s\n", it.Title, it.Source, it.Link)
	}
	prompt := "Você é um analista epidemiológico. Resuma, em 4–6 frases, " +
		"o panorama de SRAG no Brasil com base nas manchetes abaixo. " +
		"Inclua cautelas/viés e cite 2–3 fontes por nome.\nManchetes:\n" + bullets.String()

	clientCfg := openai.DefaultConfig(c.cfg.OpenAIKey)
	if c.cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = c.cfg.OpenAIBaseURL
	}
	clientCfg.HTTPClient = c.http
	client := openai.NewClientWithConfig(clientCfg)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleepBackoff(ctx, attempt-1); err != nil {
				return UnavailableMessage
			}
		}

		start := time.Now()
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.cfg.OpenAIModel,
			Temperature: 0.3,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err == nil {
			c.audit.Event(runID, "llm.openai.usage", map[string]any{
				"model":             c.cfg.OpenAIModel,
				"duration_ms":       time.Since(start).Milliseconds(),
				"prompt_tokens":     resp.Usage.PromptTokens,
				"completion_tokens": resp.Usage.CompletionTokens,
				"total_tokens":      resp.Usage.TotalTokens,
				"prompt_len":        len(prompt),
			})
			if len(resp.Choices) == 0 {
				return UnavailableMessage
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content)
		}

		lastErr = err
		retryable := retryableOpenAIError(err)
		c.audit.Event(runID, "openai.retry", map[string]any{
			"attempt": attempt, "retryable": retryable, "error": err.Error(),
		})
		if !retryable {
			break
		}
	}
	c.audit.Event(runID, "openai.fail", map[string]any{"error": lastErr.Error()})
	return UnavailableMessage
}

func retryableOpenAIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Transport-level failures (timeouts, connection resets) are worth a retry.
	return true
}

// sleepBackoff waits BackoffBase * 2^attempt plus up to 250ms of jitter.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	base := c.cfg.BackoffBase * time.Duration(1<<uint(attempt))
	delay := base + time.Duration(rand.Int63n(int64(250*time.Millisecond)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// Package engine is a read-only client for the market engine that owns
// market lifecycles.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/preyanshu/verdict/internal/domain"
)

// maxBody bounds a single engine response.
const maxBody = 8 << 20

// Client reads markets from the engine REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for baseURL, e.g. "http://localhost:3001".
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "engine")),
	}
}

// Graduated returns resolved markets, unique by id, newest first.
func (c *Client) Graduated(ctx context.Context) ([]domain.Market, error) {
	var raw []apiStrategy
	if err := c.getJSON(ctx, "/api/strategies/graduated", &raw); err != nil {
		return nil, fmt.Errorf("engine: graduated: %w", err)
	}

	seen := make(map[string]bool, len(raw))
	out := make([]domain.Market, 0, len(raw))
	for _, s := range raw {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s.toDomain())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if dropped := len(raw) - len(out); dropped > 0 {
		c.logger.Debug("dropped duplicate strategies", slog.Int("count", dropped))
	}
	return out, nil
}

// Market returns one market. An unknown id is domain.ErrNotFound.
func (c *Client) Market(ctx context.Context, id string) (domain.Market, error) {
	var raw apiStrategy
	if err := c.getJSON(ctx, "/api/strategies/"+url.PathEscape(id), &raw); err != nil {
		return domain.Market{}, fmt.Errorf("engine: market %s: %w", id, err)
	}
	return raw.toDomain(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func checkStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return domain.ErrNotFound
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return fmt.Errorf("unexpected status %d: %s", code, snippet)
	}
}

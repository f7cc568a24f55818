// Package exa provides a client for the Exa neural search API.
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.exa.ai"

// Client defines the Exa API operations used by the research pipeline.
type Client interface {
	// Search performs a search and returns result metadata (and optionally
	// inline text contents).
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	// Contents fetches full text and highlights for a set of result URLs.
	Contents(ctx context.Context, req ContentsRequest) (*ContentsResponse, error)
}

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query          string           `json:"query"`
	NumResults     int              `json:"numResults,omitempty"`
	Type           string           `json:"type,omitempty"` // "neural", "keyword" or "auto"
	UseAutoprompt  bool             `json:"useAutoprompt,omitempty"`
	IncludeDomains []string         `json:"includeDomains,omitempty"`
	ExcludeDomains []string         `json:"excludeDomains,omitempty"`
	Contents       *ContentsOptions `json:"contents,omitempty"`
}

// ContentsRequest is the request body for POST /contents.
type ContentsRequest struct {
	URLs       []string          `json:"urls"`
	Text       *TextOptions      `json:"text,omitempty"`
	Highlights *HighlightOptions `json:"highlights,omitempty"`
}

// ContentsOptions requests inline contents alongside search results.
type ContentsOptions struct {
	Text *TextOptions `json:"text,omitempty"`
}

// TextOptions bounds the amount of text returned per result.
type TextOptions struct {
	MaxCharacters int `json:"maxCharacters,omitempty"`
}

// HighlightOptions requests query-targeted excerpt highlights.
type HighlightOptions struct {
	Query            string `json:"query,omitempty"`
	NumSentences     int    `json:"numSentences,omitempty"`
	HighlightsPerURL int    `json:"highlightsPerUrl,omitempty"`
}

// SearchResponse is the response from POST /search.
type SearchResponse struct {
	Results            []Result `json:"results"`
	ResolvedSearchType string   `json:"resolvedSearchType,omitempty"`
	AutopromptString   string   `json:"autopromptString,omitempty"`
}

// ContentsResponse is the response from POST /contents.
type ContentsResponse struct {
	Results []Result `json:"results"`
}

// Result is a single search or contents result.
type Result struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Text       string   `json:"text,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
	Score      float64  `json:"score,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Exa API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var result SearchResponse
	if err := c.post(ctx, "/search", req, &result); err != nil {
		return nil, eris.Wrap(err, "exa: search")
	}
	return &result, nil
}

func (c *httpClient) Contents(ctx context.Context, req ContentsRequest) (*ContentsResponse, error) {
	var result ContentsResponse
	if err := c.post(ctx, "/contents", req, &result); err != nil {
		return nil, eris.Wrap(err, "exa: contents")
	}
	return &result, nil
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// post sends a JSON request with rate limiting and exponential backoff
// retries on transient failures (429, 500, 502, 503).
func (c *httpClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return eris.Wrap(lastErr, "send request")
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return eris.Wrap(readErr, "read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("status %d: %s", resp.StatusCode, string(respBody))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return eris.Wrap(err, "unmarshal response")
		}
		return nil
	}

	return lastErr
}

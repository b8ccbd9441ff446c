package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
}

type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Search runs one free-text query. No retry, no caching; failures are
// reported upward as errors for the caller to render.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	payload := map[string]any{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": c.maxResults,
		"topic":       "general",
	}
	var decoded any
	if err := c.post(ctx, "/search", payload, &decoded); err != nil {
		return nil, err
	}
	return Normalize(decoded)
}

// Extract pulls readable content from one or more URLs.
func (c *Client) Extract(ctx context.Context, urls []string) ([]ExtractResult, error) {
	if len(urls) == 0 {
		return nil, errors.New("no urls provided")
	}
	payload := map[string]any{
		"api_key": c.apiKey,
		"urls":    urls,
	}
	var parsed struct {
		Results []struct {
			URL        string `json:"url"`
			RawContent string `json:"raw_content"`
			Content    string `json:"content"`
		} `json:"results"`
	}
	if err := c.post(ctx, "/extract", payload, &parsed); err != nil {
		return nil, err
	}
	results := make([]ExtractResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		raw := r.RawContent
		if raw == "" {
			raw = r.Content
		}
		results = append(results, ExtractResult{URL: r.URL, RawContent: raw})
	}
	return results, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return ProviderError{Message: fmt.Sprintf("Search error: provider returned %s", resp.Status)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Normalize reshapes the provider's variable payloads into a ranked result
// list. Three shapes are accepted: an object with an "error" key, an object
// with a "results" key, and a bare array. Anything else is a classification
// failure.
func Normalize(payload any) ([]Result, error) {
	switch v := payload.(type) {
	case map[string]any:
		if msg, ok := v["error"]; ok {
			return nil, ProviderError{Message: fmt.Sprintf("Search error: %v", msg)}
		}
		if raw, ok := v["results"]; ok {
			list, ok := raw.([]any)
			if !ok {
				return nil, ProviderError{Message: fmt.Sprintf("Unexpected response format: results is %T", raw)}
			}
			return toResults(list), nil
		}
		return nil, ProviderError{Message: "Unexpected response format: object with neither results nor error"}
	case []any:
		return toResults(v), nil
	default:
		return nil, ProviderError{Message: fmt.Sprintf("Unexpected response format: %T", payload)}
	}
}

func toResults(list []any) []Result {
	results := make([]Result, 0, len(list))
	for _, entry := range list {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		result := Result{}
		if s, ok := fields["title"].(string); ok {
			result.Title = s
		}
		if s, ok := fields["url"].(string); ok {
			result.URL = s
		}
		if s, ok := fields["content"].(string); ok {
			result.Content = s
		}
		if f, ok := fields["score"].(float64); ok {
			result.Score = f
		}
		results = append(results, result)
	}
	return results
}

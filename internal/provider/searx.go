// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// SearxSearch queries a self-hosted SearxNG instance's JSON API.
type SearxSearch struct {
	Client    *http.Client
	BaseURL   string
	UserAgent string
}

// Name returns the provider identifier.
func (s *SearxSearch) Name() string { return "searx" }

// Search queries the SearxNG JSON API and returns up to limit results.
func (s *SearxSearch) Search(ctx context.Context, query string, limit int) ([]types.SearchItem, error) {
	if s.BaseURL == "" {
		return nil, fmt.Errorf("searx base URL not configured")
	}
	if limit <= 0 {
		limit = 8
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
	}
	reqURL := strings.TrimRight(s.BaseURL, "/") + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searx request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searx returned HTTP %d", resp.StatusCode)
	}

	var body searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing searx response: %w", err)
	}

	var items []types.SearchItem
	for _, r := range body.Results {
		if r.URL == "" {
			continue
		}
		score := r.Score
		if score <= 0 {
			score = 0.5
		} else if score > 1 {
			// SearxNG scores are unbounded; squash into (0, 1].
			score = 1 - 1/(1+score)
		}
		items = append(items, types.SearchItem{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
			Source:  "searx",
			Score:   score,
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

type searxResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ReaderExtract fetches page text through a reader-style extraction service
// (a proxy that returns the readable text of the target URL, e.g. a Jina
// Reader deployment).
type ReaderExtract struct {
	Client    *http.Client
	BaseURL   string
	UserAgent string

	// MaxContentLen truncates the returned text; 0 means no truncation.
	MaxContentLen int
}

// Name returns the provider identifier.
func (r *ReaderExtract) Name() string { return "reader" }

// Extract requests BaseURL/<target> and returns the plain-text body. The
// first markdown heading, if any, becomes the title.
func (r *ReaderExtract) Extract(ctx context.Context, target string) (Extraction, error) {
	if r.BaseURL == "" {
		return Extraction{}, fmt.Errorf("reader base URL not configured")
	}

	reqURL := strings.TrimRight(r.BaseURL, "/") + "/" + target
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Extraction{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return Extraction{}, fmt.Errorf("reader request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Extraction{}, fmt.Errorf("reader returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Extraction{}, fmt.Errorf("reading reader response: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return Extraction{}, fmt.Errorf("reader returned empty content")
	}
	if r.MaxContentLen > 0 && len(content) > r.MaxContentLen {
		content = content[:r.MaxContentLen]
	}

	return Extraction{
		Title:   firstHeading(content),
		Content: content,
		Metadata: map[string]string{
			"extractor": "reader",
			"url":       target,
		},
	}, nil
}

// firstHeading returns the text of the first markdown heading line, if any.
func firstHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return ""
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// LocalExtract is the last rung of the extraction ladder: a direct GET of
// the target URL with HTML-to-text conversion. No third-party service
// involved, so it works whenever the target itself is reachable.
type LocalExtract struct {
	Client    *http.Client
	UserAgent string

	// MaxContentLen truncates the extracted text; 0 means no truncation.
	MaxContentLen int
}

// Name returns the provider identifier.
func (l *LocalExtract) Name() string { return "local" }

// Extract fetches the URL and strips it down to readable text.
func (l *LocalExtract) Extract(ctx context.Context, target string) (Extraction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Extraction{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html,text/plain")
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return Extraction{}, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Extraction{}, fmt.Errorf("fetching %s: HTTP %d", target, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return Extraction{}, fmt.Errorf("parsing HTML from %s: %w", target, err)
	}

	title, content := flattenHTML(doc)
	content = strings.TrimSpace(content)
	if content == "" {
		return Extraction{}, fmt.Errorf("no text content at %s", target)
	}
	if l.MaxContentLen > 0 && len(content) > l.MaxContentLen {
		content = content[:l.MaxContentLen]
	}

	return Extraction{
		Title:   title,
		Content: content,
		Metadata: map[string]string{
			"extractor": "local",
			"url":       target,
		},
	}, nil
}

// skippedElements are HTML elements whose text is never page content.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true,
	"nav": true, "header": true, "footer": true, "aside": true,
	"form": true, "iframe": true,
}

// blockElements get a newline separator so extracted text keeps sentence
// boundaries intact.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "blockquote": true, "pre": true,
}

// flattenHTML walks the parsed document and returns the <title> text and
// the concatenated visible text.
func flattenHTML(doc *html.Node) (title, content string) {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "title" && title == "" {
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
			if blockElements[n.Data] {
				b.WriteByte('\n')
			}
		case html.TextNode:
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// Collapse blank lines left over from nested block elements.
	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return title, strings.Join(lines, "\n")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gate

import (
	"context"
	"encoding/xml"
	"strings"
)

// discoverPages enumerates candidate page URLs for a reachable source:
// robots.txt Sitemap directives first, then the conventional sitemap paths,
// then just the homepage. Results are capped at MaxPagesPerSource.
func (g *Gate) discoverPages(ctx context.Context, baseURL string) []string {
	base := strings.TrimRight(baseURL, "/")

	sitemaps := g.robotsSitemaps(ctx, base)
	if len(sitemaps) == 0 {
		sitemaps = []string{base + "/sitemap.xml", base + "/sitemap_index.xml"}
	}

	for _, sm := range sitemaps {
		if pages := g.fetchSitemap(ctx, sm, 0); len(pages) > 0 {
			if len(pages) > g.cfg.MaxPagesPerSource {
				pages = pages[:g.cfg.MaxPagesPerSource]
			}
			return pages
		}
	}
	return []string{baseURL}
}

// robotsSitemaps returns the Sitemap directives from robots.txt, if any.
func (g *Gate) robotsSitemaps(ctx context.Context, base string) []string {
	body, err := g.fetch(ctx, base+"/robots.txt")
	if err != nil {
		return nil
	}
	var sitemaps []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 8 || !strings.EqualFold(line[:8], "sitemap:") {
			continue
		}
		if u := strings.TrimSpace(line[8:]); u != "" {
			sitemaps = append(sitemaps, u)
		}
	}
	return sitemaps
}

// sitemapDoc matches both <urlset> and <sitemapindex> documents; only the
// <loc> entries matter.
type sitemapDoc struct {
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// fetchSitemap fetches and parses one sitemap. Index documents recurse one
// level into their child sitemaps.
func (g *Gate) fetchSitemap(ctx context.Context, sitemapURL string, depth int) []string {
	body, err := g.fetch(ctx, sitemapURL)
	if err != nil {
		return nil
	}

	var doc sitemapDoc
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		return nil
	}

	var pages []string
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			pages = append(pages, loc)
		}
		if len(pages) >= g.cfg.MaxPagesPerSource {
			return pages
		}
	}

	if len(pages) == 0 && depth == 0 {
		for _, child := range doc.Sitemaps {
			if loc := strings.TrimSpace(child.Loc); loc != "" {
				pages = append(pages, g.fetchSitemap(ctx, loc, depth+1)...)
			}
			if len(pages) >= g.cfg.MaxPagesPerSource {
				break
			}
		}
	}
	return pages
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify maps a raw query string to an intent and a suggested
// tool chain. Classification is pure, synchronous, and idempotent: no
// network I/O, no state.
//
// The intent rules form an explicit ordered ladder evaluated first-match-wins.
// The ordering is a contract relied on by the orchestrator's router, not an
// accident of code layout; reorder with care.
package classify

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// urlPattern matches well-formed HTTP(S) URLs embedded in free text.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// namePattern matches capitalized multi-word sequences (candidate person or
// organization names).
var namePattern = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)+\b`)

// companyPattern matches a capitalized name followed by a corporate suffix.
var companyPattern = regexp.MustCompile(`\b([A-Z][A-Za-z0-9]*(?: [A-Z][A-Za-z0-9]*)*) (Inc|Corp|Corporation|LLC|Ltd|GmbH|AG|Co|Company|Labs|Technologies|Systems)\b\.?`)

// profileHostPattern matches URLs on known profile hosts; such URLs upgrade
// url_scrape to profile_lookup.
var profileHostPattern = regexp.MustCompile(`https?://(?:www\.)?(?:linkedin\.com/in/|linkedin\.com/company/|twitter\.com/|x\.com/)`)

// interrogatives are excluded from name extraction: "Who Is", "What Are"
// and similar sequences look like names to the capitalization heuristic.
var interrogatives = map[string]bool{
	"who": true, "what": true, "where": true, "when": true, "why": true,
	"how": true, "which": true, "whose": true, "is": true, "are": true,
	"was": true, "were": true, "does": true, "did": true, "can": true,
	"could": true, "should": true, "would": true, "the": true, "find": true,
	"tell": true, "give": true, "show": true, "list": true,
}

// stopwords are excluded from keyword extraction.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "about": true,
	"from": true, "that": true, "this": true, "what": true, "who": true,
	"where": true, "when": true, "why": true, "how": true, "does": true,
	"are": true, "was": true, "were": true, "will": true, "have": true,
	"has": true, "into": true, "their": true, "there": true, "which": true,
}

// rule is one rung of the intent ladder: a predicate pattern, the intent it
// selects, a fixed confidence, and the downstream agents to suggest.
type rule struct {
	name       string
	pattern    *regexp.Regexp
	intent     types.Intent
	confidence float64
	agents     []string
}

// intentRules is the ordered intent ladder. Evaluation is strictly
// first-match-wins: profile beats lead beats company beats news beats deep.
// URL-bearing queries bypass the ladder entirely (highest confidence).
var intentRules = []rule{
	{
		name:       "profile",
		pattern:    regexp.MustCompile(`(?i)\b(who is|profile of|linkedin|biography|background of|ceo of|cto of|founder of|works? at)\b`),
		intent:     types.IntentProfileLookup,
		confidence: 0.85,
		agents:     []string{"profile-enricher", "lead-enricher", "web-search"},
	},
	{
		name:       "lead",
		pattern:    regexp.MustCompile(`(?i)\b(lead|prospect|contact (?:info|details)|email address|enrich(?:ment)?|decision maker)\b`),
		intent:     types.IntentLeadEnrichment,
		confidence: 0.8,
		agents:     []string{"lead-enricher", "profile-enricher", "web-search"},
	},
	{
		name:       "company",
		pattern:    regexp.MustCompile(`(?i)\b(company|startup|competitors?|funding|revenue|acquisitions?|valuation|headquarters)\b`),
		intent:     types.IntentCompanyResearch,
		confidence: 0.8,
		agents:     []string{"company-researcher", "web-search", "content-extractor"},
	},
	{
		name:       "news",
		pattern:    regexp.MustCompile(`(?i)\b(news|latest|recent|today|this (?:week|month)|breaking|announcement)\b`),
		intent:     types.IntentNewsSearch,
		confidence: 0.8,
		agents:     []string{"news-searcher", "content-extractor"},
	},
	{
		name:       "deep",
		pattern:    regexp.MustCompile(`(?i)\b(deep dive|comprehensive|in-?depth|detailed analysis|thorough|research)\b`),
		intent:     types.IntentDeepResearch,
		confidence: 0.75,
		agents:     []string{"web-search", "content-extractor", "claim-verifier", "report-compiler"},
	},
}

// generalAgents is the default tool chain when no rule matches.
var generalAgents = []string{"web-search", "content-extractor", "report-compiler"}

// Analyze classifies a raw query string. The result is a pure function of
// the input.
func Analyze(query string) types.QueryAnalysis {
	a := types.QueryAnalysis{
		ExtractedURLs:      ExtractURLs(query),
		ExtractedNames:     extractNames(query),
		ExtractedCompanies: extractCompanies(query),
		Keywords:           extractKeywords(query),
	}

	// URL-bearing queries always win with the highest confidence.
	if len(a.ExtractedURLs) > 0 {
		a.Intent = types.IntentURLScrape
		a.Confidence = 0.95
		a.SuggestedAgents = []string{"content-extractor", "summarizer"}
		for _, u := range a.ExtractedURLs {
			if profileHostPattern.MatchString(u) {
				a.Intent = types.IntentProfileLookup
				a.SuggestedAgents = []string{"profile-enricher", "content-extractor"}
				break
			}
		}
		return a
	}

	for _, r := range intentRules {
		if r.pattern.MatchString(query) {
			a.Intent = r.intent
			a.Confidence = r.confidence
			a.SuggestedAgents = append([]string(nil), r.agents...)
			return a
		}
	}

	a.Intent = types.IntentGeneralResearch
	a.Confidence = 0.6
	a.SuggestedAgents = append([]string(nil), generalAgents...)
	return a
}

// ExtractURLs returns all well-formed HTTP(S) URLs in the query, in order
// of appearance, with trailing punctuation stripped.
func ExtractURLs(query string) []string {
	matches := urlPattern.FindAllString(query, -1)
	var urls []string
	for _, m := range matches {
		urls = append(urls, strings.TrimRight(m, ".,;:!?"))
	}
	return urls
}

// extractNames returns capitalized multi-word sequences that do not start
// with an interrogative and do not end with a corporate suffix.
func extractNames(query string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range namePattern.FindAllString(query, -1) {
		words := strings.Fields(m)
		for len(words) > 0 && interrogatives[strings.ToLower(words[0])] {
			words = words[1:]
		}
		if len(words) < 2 {
			continue
		}
		m = strings.Join(words, " ")
		if companyPattern.MatchString(m) {
			continue
		}
		if !seen[m] {
			seen[m] = true
			names = append(names, m)
		}
	}
	return names
}

// extractCompanies returns "Name + corporate suffix" sequences, suffix included.
func extractCompanies(query string) []string {
	var companies []string
	seen := make(map[string]bool)
	for _, m := range companyPattern.FindAllStringSubmatch(query, -1) {
		c := strings.TrimSuffix(strings.TrimSpace(m[0]), ".")
		if !seen[c] {
			seen[c] = true
			companies = append(companies, c)
		}
	}
	return companies
}

// extractKeywords returns lowercased content words longer than 3 runes,
// deduplicated and sorted, capped at 10.
func extractKeywords(query string) []string {
	seen := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(query)) {
		w := strings.Trim(f, `.,;:!?"'()[]`)
		if len(w) <= 3 || stopwords[w] || strings.Contains(w, "://") {
			continue
		}
		seen[w] = true
	}
	keywords := make([]string, 0, len(seen))
	for w := range seen {
		keywords = append(keywords, w)
	}
	sort.Strings(keywords)
	if len(keywords) > 10 {
		keywords = keywords[:10]
	}
	return keywords
}

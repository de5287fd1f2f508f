// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Intent identifies the tool chain a query should be routed to.
type Intent string

const (
	IntentURLScrape       Intent = "url_scrape"
	IntentProfileLookup   Intent = "profile_lookup"
	IntentCompanyResearch Intent = "company_research"
	IntentLeadEnrichment  Intent = "lead_enrichment"
	IntentNewsSearch      Intent = "news_search"
	IntentDeepResearch    Intent = "deep_research"
	IntentGeneralResearch Intent = "general_research"
)

// QueryAnalysis is the classifier output for a raw query string. It is a
// pure function of the query and carries no persistent identity.
type QueryAnalysis struct {
	Intent             Intent   `json:"intent" yaml:"intent"`
	Confidence         float64  `json:"confidence" yaml:"confidence"`
	ExtractedURLs      []string `json:"extracted_urls" yaml:"extracted_urls"`
	ExtractedNames     []string `json:"extracted_names" yaml:"extracted_names"`
	ExtractedCompanies []string `json:"extracted_companies" yaml:"extracted_companies"`
	Keywords           []string `json:"keywords" yaml:"keywords"`
	SuggestedAgents    []string `json:"suggested_agents" yaml:"suggested_agents"`
}

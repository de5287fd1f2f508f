// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-orchestrator/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the search providers.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of results a provider returns (default 8).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// EnableBrave controls whether the Brave Search provider is used.
	EnableBrave bool `json:"enable_brave" yaml:"enable_brave"`

	// BraveAPIKey authenticates against the Brave Search API.
	BraveAPIKey string `json:"brave_api_key,omitempty" yaml:"brave_api_key,omitempty"`

	// EnableSearx controls whether the SearxNG provider is used.
	EnableSearx bool `json:"enable_searx" yaml:"enable_searx"`

	// SearxBaseURL is the base URL of a self-hosted SearxNG instance.
	SearxBaseURL string `json:"searx_base_url,omitempty" yaml:"searx_base_url,omitempty"`
}

// ExtractConfig holds settings for the extraction providers.
type ExtractConfig struct {
	HTTPConfig `yaml:",inline"`

	// ReaderBaseURL is the base URL of a reader-style extraction service.
	// Empty disables the remote provider; extraction falls through to the
	// local fetch-and-parse provider.
	ReaderBaseURL string `json:"reader_base_url,omitempty" yaml:"reader_base_url,omitempty"`

	// MinContentLen is the minimum extracted text length, in bytes, for a
	// page to count as usable (default 200).
	MinContentLen int `json:"min_content_len" yaml:"min_content_len"`

	// Concurrency caps the number of concurrent extractions (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// MaxContentLen truncates extracted text to this many bytes (default 20000).
	MaxContentLen int `json:"max_content_len" yaml:"max_content_len"`
}

// ConfiguredSource is one entry in the reliability gate's source list.
type ConfiguredSource struct {
	Name    string `json:"name" yaml:"name"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// GateConfig holds settings for the source reliability gate.
type GateConfig struct {
	HTTPConfig `yaml:",inline"`

	// ProbeTimeout bounds a single connectivity probe (default 8s).
	ProbeTimeout time.Duration `json:"probe_timeout" yaml:"probe_timeout"`

	// MaxPagesPerSource caps sitemap page enumeration per source (default 25).
	MaxPagesPerSource int `json:"max_pages_per_source" yaml:"max_pages_per_source"`

	// Concurrency caps the number of concurrent probes (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// RequestsPerSecond paces outbound probe traffic (default 4).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// AllowPrivate permits loopback and private-network probe targets.
	// Off by default; intended for self-hosted source lists.
	AllowPrivate bool `json:"allow_private" yaml:"allow_private"`

	// Sources is the configured candidate source list.
	Sources []ConfiguredSource `json:"sources" yaml:"sources"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxTokens bounds the response size (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Timeout bounds a single API call (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// OrchestratorConfig holds settings for the job state machine.
type OrchestratorConfig struct {
	// MaxSources is the default number of search results to extract,
	// clamped to [1, 20] (default 8).
	MaxSources int `json:"max_sources" yaml:"max_sources"`

	// MaxQueryLen caps accepted query length in runes (default 2000).
	MaxQueryLen int `json:"max_query_len" yaml:"max_query_len"`
}

// StoreConfig holds settings for the job store.
type StoreConfig struct {
	// DataDir is the directory holding the jobs database (default "data/").
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// ShutdownTimeout bounds graceful shutdown (default 10s).
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// PipelineConfig groups all stage configurations. It is constructed once at
// startup from the config file and flags, then passed down by value; no
// stage reads ambient environment state.
type PipelineConfig struct {
	Search       SearchConfig       `json:"search" yaml:"search"`
	Extract      ExtractConfig      `json:"extract" yaml:"extract"`
	Gate         GateConfig         `json:"gate" yaml:"gate"`
	AI           AIConfig           `json:"ai" yaml:"ai"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator"`
	Store        StoreConfig        `json:"store" yaml:"store"`
	Server       ServerConfig       `json:"server" yaml:"server"`
}

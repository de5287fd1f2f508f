// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-orchestrator/internal/consolidate"
	"github.com/pdiddy/research-orchestrator/internal/gate"
	"github.com/pdiddy/research-orchestrator/internal/orchestrate"
	"github.com/pdiddy/research-orchestrator/internal/provider"
	"github.com/pdiddy/research-orchestrator/internal/report"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

func setConfigDefaults() {
	viper.SetDefault("search.max_results", 8)
	viper.SetDefault("search.timeout", "10s")
	viper.SetDefault("extract.min_content_len", 200)
	viper.SetDefault("extract.max_content_len", 20000)
	viper.SetDefault("extract.concurrency", 4)
	viper.SetDefault("extract.timeout", "15s")
	viper.SetDefault("gate.probe_timeout", "8s")
	viper.SetDefault("gate.max_pages_per_source", 25)
	viper.SetDefault("gate.concurrency", 4)
	viper.SetDefault("gate.requests_per_second", 4.0)
	viper.SetDefault("ai.model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("ai.max_retries", 3)
	viper.SetDefault("ai.max_tokens", 4096)
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("orchestrator.max_sources", 8)
	viper.SetDefault("orchestrator.max_query_len", 2000)
	viper.SetDefault("store.data_dir", "data")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.shutdown_timeout", "10s")
}

// pipelineConfig builds the full pipeline configuration from the config
// file, environment, and loaded secrets. Stages receive this by value; none
// of them reads ambient environment state.
func pipelineConfig() types.PipelineConfig {
	return types.PipelineConfig{
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("search.timeout"),
				UserAgent: userAgent(),
			},
			MaxResults:   viper.GetInt("search.max_results"),
			EnableBrave:  viper.GetBool("search.enable_brave"),
			BraveAPIKey:  secretDefault("brave-api-key", viper.GetString("search.brave_api_key")),
			EnableSearx:  viper.GetBool("search.enable_searx"),
			SearxBaseURL: viper.GetString("search.searx_base_url"),
		},
		Extract: types.ExtractConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("extract.timeout"),
				UserAgent: userAgent(),
			},
			ReaderBaseURL: viper.GetString("extract.reader_base_url"),
			MinContentLen: viper.GetInt("extract.min_content_len"),
			Concurrency:   viper.GetInt("extract.concurrency"),
			MaxContentLen: viper.GetInt("extract.max_content_len"),
		},
		Gate: types.GateConfig{
			HTTPConfig: types.HTTPConfig{
				UserAgent: userAgent(),
			},
			ProbeTimeout:      viper.GetDuration("gate.probe_timeout"),
			MaxPagesPerSource: viper.GetInt("gate.max_pages_per_source"),
			Concurrency:       viper.GetInt("gate.concurrency"),
			RequestsPerSecond: viper.GetFloat64("gate.requests_per_second"),
			AllowPrivate:      viper.GetBool("gate.allow_private"),
			Sources:           gateSources(),
		},
		AI: types.AIConfig{
			Model:      viper.GetString("ai.model"),
			APIKey:     secretDefault("anthropic-api-key", viper.GetString("ai.api_key")),
			MaxRetries: viper.GetInt("ai.max_retries"),
			MaxTokens:  viper.GetInt("ai.max_tokens"),
			Timeout:    viper.GetDuration("ai.timeout"),
		},
		Orchestrator: types.OrchestratorConfig{
			MaxSources:  viper.GetInt("orchestrator.max_sources"),
			MaxQueryLen: viper.GetInt("orchestrator.max_query_len"),
		},
		Store: types.StoreConfig{
			DataDir: viper.GetString("store.data_dir"),
		},
		Server: types.ServerConfig{
			Addr:            viper.GetString("server.addr"),
			ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		},
	}
}

func userAgent() string {
	return "research-orchestrator/" + version
}

// gateSources parses the gate.sources config list of {name, base_url} entries.
func gateSources() []types.ConfiguredSource {
	raw, ok := viper.Get("gate.sources").([]any)
	if !ok {
		return nil
	}
	var sources []types.ConfiguredSource
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		base, _ := m["base_url"].(string)
		if base == "" {
			continue
		}
		if name == "" {
			name = base
		}
		sources = append(sources, types.ConfiguredSource{Name: name, BaseURL: base})
	}
	return sources
}

// newLogger builds the process logger. Production encoding by default,
// development encoding with debug level under --verbose.
func newLogger() (*zap.Logger, error) {
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	return cfg.Build()
}

// buildPipeline wires the tool adapter, gate, consolidation engine, report
// compiler, and orchestrator from one configuration.
func buildPipeline(cfg types.PipelineConfig, log *zap.Logger) (*orchestrate.Orchestrator, *provider.Adapter, *gate.Gate) {
	adapter := provider.New(cfg, log)
	g := gate.New(cfg.Gate, log)
	engine := consolidate.New(adapter, log)
	compiler := report.New(adapter, log)
	orch := orchestrate.New(adapter, g, engine, compiler, orchestrate.ConfigFrom(cfg), log)
	return orch, adapter, g
}

// flushLogger syncs buffered log output at process exit.
func flushLogger(log *zap.Logger) {
	// Sync on stderr returns ENOTTY on some platforms; harmless.
	_ = log.Sync()
}

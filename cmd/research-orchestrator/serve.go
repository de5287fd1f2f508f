// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-orchestrator/internal/server"
	"github.com/pdiddy/research-orchestrator/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the research HTTP API",
	Long: `Serve starts the HTTP API: POST /run submits a research job (optionally
streamed as server-sent events), POST /search runs a gate-checked search,
GET /status/{id} looks up a job, GET /healthz reports liveness.

Terminal jobs are persisted to the SQLite job store so status lookups
survive restarts.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer flushLogger(log)

	cfg := pipelineConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	jobs, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer jobs.Close()

	orch, adapter, g := buildPipeline(cfg, log)
	srv := server.New(orch, adapter, g, jobs, cfg.Server, cfg.Orchestrator.MaxQueryLen, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")

	rootCmd.AddCommand(serveCmd)
}

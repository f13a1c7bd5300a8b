package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sellerkit/improver/internal/api"
	"github.com/sellerkit/improver/internal/config"
	"github.com/sellerkit/improver/internal/engine"
	"github.com/sellerkit/improver/internal/jobs"
	"github.com/sellerkit/improver/internal/store"
	"github.com/sellerkit/improver/internal/worker"
)

func main() {
	cfg := config.Load()

	// Select the job store: SQLite when a path is configured, otherwise
	// in-memory.
	var jobStore store.JobStore
	if cfg.DBPath != "" {
		db, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			slog.Error("open db", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()

		s, err := store.New(db)
		if err != nil {
			slog.Error("init store", "error", err)
			os.Exit(1)
		}
		jobStore = s
		slog.Info("using sqlite store", "path", cfg.DBPath)
	} else {
		mem := store.NewMemory()
		defer mem.Close()
		jobStore = mem
		slog.Info("using in-memory store")
	}

	// Build pipeline dependencies.
	var modelClient engine.ModelClient
	if cfg.UseStubs() {
		slog.Info("no LLM API key configured, using stub model client", "provider", cfg.LLMProvider)
		modelClient = &engine.StubModelClient{}
	} else {
		switch cfg.LLMProvider {
		case "claude":
			modelClient = engine.NewClaudeClient(cfg.AnthropicKey, engine.WithClaudeModel(cfg.AnthropicModel))
		case "gemini":
			modelClient = engine.NewGeminiClient(cfg.GeminiKey, engine.WithGeminiModel(cfg.GeminiModel))
		case "ollama":
			modelClient = engine.NewOllamaClient(cfg.OllamaURL, engine.WithOllamaModel(cfg.OllamaModel))
		default:
			modelClient = engine.NewOpenAIClient(cfg.OpenAIKey,
				engine.WithModel(cfg.OpenAIModel),
				engine.WithBaseURL(cfg.OpenAIBaseURL),
			)
		}
		slog.Info("using LLM provider", "provider", cfg.LLMProvider)
	}

	var adapter engine.MarketplaceAdapter
	if cfg.UseStubAdapter() {
		slog.Info("MARKETPLACE_BASE_URL not set, using stub adapter")
		adapter = &engine.StubAdapter{}
	} else {
		adapter = engine.NewHTTPAdapter(cfg.MarketplaceName, cfg.MarketplaceBaseURL, cfg.MarketplaceAPIKey,
			engine.WithAdapterTimeout(cfg.HTTPTimeout))
		slog.Info("using marketplace adapter", "name", cfg.MarketplaceName, "base_url", cfg.MarketplaceBaseURL)
	}

	var pipelineOpts []engine.PipelineOption
	if cfg.ExtractPages {
		pipelineOpts = append(pipelineOpts, engine.WithExtractor(engine.NewPageExtractor()))
	}
	pipeline := engine.NewPipeline(adapter, modelClient, pipelineOpts...)

	// Start worker in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := worker.New(jobStore, pipeline, cfg.WorkerInterval)
	go w.Start(ctx)

	// Start API server.
	enqueuer := jobs.NewEnqueuer(jobStore, cfg.TargetRating)
	srv := api.New(jobStore, enqueuer, w)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down...")
		cancel()
		httpServer.Shutdown(context.Background())
	}()

	fmt.Printf("improver server listening on http://localhost:%s\n", cfg.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

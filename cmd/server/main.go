package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/dgallion1/quizgest/internal/api"
	"github.com/dgallion1/quizgest/internal/config"
	"github.com/dgallion1/quizgest/internal/generate"
	"github.com/dgallion1/quizgest/internal/logger"
	"github.com/dgallion1/quizgest/internal/pipeline"
	"github.com/dgallion1/quizgest/internal/retrieval"
	"github.com/dgallion1/quizgest/internal/store"
)

// generator is a provider client that holds resources until closed.
type generator interface {
	generate.Generator
	Close()
}

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence.
	var st store.Store
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		st = pg
		log.Info("using postgres store")
	} else {
		st = store.NewMemoryStore(cfg.JobTTL)
		log.Info("using in-memory store", "job_ttl", cfg.JobTTL.String())
	}

	// Generation provider.
	stats := generate.NewLLMStats(time.Hour)
	var gen generator
	switch cfg.Provider {
	case config.ProviderGemini:
		gen, err = generate.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, stats)
		if err != nil {
			log.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
	default:
		gen = generate.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, stats)
	}

	// Optional retrieval augmentation.
	var opts []pipeline.Option
	if cfg.WeaviateHost != "" {
		wv, err := retrieval.NewWeaviateFromConfig(cfg.WeaviateHost, cfg.WeaviateScheme, cfg.WeaviateClass)
		if err != nil {
			log.Error("failed to create weaviate client", "error", err)
			os.Exit(1)
		}
		opts = append(opts, pipeline.WithRetriever(wv), pipeline.WithIndexer(wv))
		log.Info("retrieval enabled", "host", cfg.WeaviateHost, "class", cfg.WeaviateClass)
	}

	orch := pipeline.NewOrchestrator(cfg, st, gen, log, opts...)
	orch.Start(ctx)

	srv := api.NewServer(orch, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting quizgest", "port", cfg.Port, "provider", cfg.Provider, "model", gen.Model())
	err = serve(sigCtx, log, httpServer, func() {
		orch.Stop()
		gen.Close()
		if db != nil {
			db.Close()
		}
	})
	if err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// serve runs srv until ctx is done, then shuts it down and runs cleanup.
// It returns only after cleanup has finished.
func serve(ctx context.Context, log *slog.Logger, srv *http.Server, cleanup func()) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", "error", err)
		}
		cleanup()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/embedding"
	"code-review-orchestrator/internal/index"
	"code-review-orchestrator/internal/llm"
	"code-review-orchestrator/internal/prompts"
	"code-review-orchestrator/internal/retriever"
	"code-review-orchestrator/internal/review"
	"code-review-orchestrator/internal/server"
	"code-review-orchestrator/internal/storage"
	"code-review-orchestrator/internal/vectorstore"
)

func main() {
	// Local development convenience; ignored when absent.
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, logCleanup := setupLogger(cfg)
	defer logCleanup()
	slog.SetDefault(logger)

	// Vector store connection is shared process-wide.
	store, err := vectorstore.NewQdrantStore(cfg.Qdrant)
	if err != nil {
		slog.Error("connect vector store failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	embedder := embedding.NewOpenAIEmbedder(cfg.Embedding)

	llmClient, err := llm.NewClient(context.Background(), cfg.LLM)
	if err != nil {
		slog.Error("create llm failed", "error", err)
		os.Exit(1)
	}
	slog.Info("llm initialized", "backend", llmClient.Name())

	indexer := index.New(store, embedder, cfg.Indexing, cfg.Qdrant.CollectionPrefix)
	fetcher := retriever.New(store, embedder, cfg.Qdrant.CollectionPrefix, cfg.Review)
	promptLoader := prompts.NewLoader(cfg.Prompts.Dir)

	orchestrator := review.NewOrchestrator(cfg.Review, llmClient, fetcher, promptLoader)
	if cfg.Review.PRIndexing {
		orchestrator.SetPRIndexer(indexer)
	}

	if cfg.Storage.Driver == "sqlite" {
		repo, err := storage.NewSQLiteRepository(cfg.Storage.DSN)
		if err != nil {
			slog.Error("init storage failed", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		orchestrator.SetAudit(repo)
	} else if cfg.Storage.Driver != "" {
		slog.Warn("unknown storage driver", "driver", cfg.Storage.Driver)
	}

	pool := server.NewWorkerPool(cfg.Server.Workers, cfg.Server.QueueSize)
	pool.Start()

	handler := server.NewHandler(cfg, orchestrator, indexer, pool)

	mux := http.NewServeMux()
	handler.Register(mux)

	// Liveness probe (Kubernetes: startup/liveness)
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Readiness probe: the vector store must answer.
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if _, err := store.ListCollections(ctx); err != nil {
			slog.Warn("vector store unhealthy", "error", err)
			http.Error(w, "Vector Store Unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ready"))
	})

	// Prometheus Metrics Endpoint
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server start failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("server stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown forced", "error", err)
	}

	// Drain queued index jobs before exiting.
	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("background jobs completed")
	case <-time.After(60 * time.Second):
		slog.Warn("job drain timeout, exiting")
	}

	slog.Info("server stopped")
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg *config.Config) (*slog.Logger, func()) {
	var writers []io.Writer
	var closers []io.Closer
	outputs := strings.Split(cfg.Log.Output, ",")

	for _, output := range outputs {
		output = strings.TrimSpace(output)
		if output == "" {
			continue
		}

		var w io.Writer
		switch output {
		case "stderr":
			w = os.Stderr
		case "stdout":
			w = os.Stdout
		default:
			// Use lumberjack for log rotation
			l := &lumberjack.Logger{
				Filename:   output,
				MaxSize:    cfg.Log.Rotation.MaxSize,
				MaxBackups: cfg.Log.Rotation.MaxBackups,
				MaxAge:     cfg.Log.Rotation.MaxAge,
				Compress:   cfg.Log.Rotation.Compress,
			}
			w = l
			closers = append(closers, l)
		}
		writers = append(writers, w)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	multiWriter := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: cfg.GetLogLevel()}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(multiWriter, opts)
	} else {
		handler = slog.NewTextHandler(multiWriter, opts)
	}

	cleanup := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	return slog.New(handler), cleanup
}

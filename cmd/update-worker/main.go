// Package main implements the update worker: it listens for targeted
// article-update requests on NATS and applies them through the sync
// orchestrator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/jhellingsdata/search-app/engine/embed"
	"github.com/jhellingsdata/search-app/engine/graph"
	"github.com/jhellingsdata/search-app/engine/scraper"
	"github.com/jhellingsdata/search-app/engine/semantic"
	"github.com/jhellingsdata/search-app/engine/store"
	"github.com/jhellingsdata/search-app/engine/sync"
	"github.com/jhellingsdata/search-app/pkg/natsutil"
)

// Config holds all environment-based configuration.
type Config struct {
	NATSURL      string
	BaseURL      string
	OpenAIKey    string
	EmbedModel   string
	EmbedDim     int
	QdrantURL    string
	Collection   string
	Neo4jURL     string
	Neo4jUser    string
	Neo4jPass    string
	ArticlesPath string
	LedgerPath   string
}

func loadConfig() Config {
	_ = godotenv.Load()
	return Config{
		NATSURL:      envOr("NATS_URL", nats.DefaultURL),
		BaseURL:      envOr("SOURCE_BASE_URL", scraper.DefaultBaseURL),
		OpenAIKey:    envOr("OPENAI_API_KEY", ""),
		EmbedModel:   envOr("EMBEDDING_MODEL", embed.DefaultModel),
		EmbedDim:     envIntOr("EMBEDDING_DIMENSION", embed.DefaultDimension),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "articles"),
		Neo4jURL:     envOr("NEO4J_URL", ""),
		Neo4jUser:    envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:    envOr("NEO4J_PASS", "password"),
		ArticlesPath: envOr("ARTICLES_PATH", "data/articles.json"),
		LedgerPath:   envOr("LEDGER_PATH", "data/embedding_ledger.csv"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

// updater applies a targeted article update.
type updater interface {
	UpdateOne(ctx context.Context, identifier, oldSlug string, forceReembed bool) bool
}

// updateHandler processes one update request from the queue. Outcomes are
// logged; the message contract has no reply.
func updateHandler(orch updater, logger *slog.Logger) func(context.Context, sync.UpdateRequest) {
	return func(ctx context.Context, req sync.UpdateRequest) {
		if req.Identifier == "" {
			logger.Warn("update request without identifier dropped")
			return
		}
		ok := orch.UpdateOne(ctx, req.Identifier, req.OldSlug, req.ForceReembed)
		logger.Info("update processed", "identifier", req.Identifier, "ok", ok)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	articles, err := store.Open(cfg.ArticlesPath)
	if err != nil {
		return fmt.Errorf("open article store: %w", err)
	}
	ledger, err := store.OpenLedger(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	vectors, err := semantic.New(cfg.QdrantURL, cfg.Collection, logger)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()

	syncCfg := sync.Config{
		Site: scraper.New(cfg.BaseURL, scraper.WithLogger(logger)),
		Embedder: embed.New(cfg.OpenAIKey,
			embed.WithModel(cfg.EmbedModel),
			embed.WithDimension(cfg.EmbedDim),
		),
		Index:    vectors,
		Ledger:   ledger,
		Articles: articles,
		Log:      logger,
	}
	if cfg.Neo4jURL != "" {
		graphStore, err := graph.New(cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass, logger)
		if err != nil {
			return fmt.Errorf("neo4j connect: %w", err)
		}
		defer graphStore.Close(ctx)
		syncCfg.Graph = graphStore
	}
	orch := sync.New(syncCfg)

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	sub, err := natsutil.Subscribe(nc, sync.UpdateSubject, updateHandler(orch, logger))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", sync.UpdateSubject, err)
	}
	defer sub.Unsubscribe()

	logger.Info("update worker listening", "subject", sync.UpdateSubject, "nats", cfg.NATSURL)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// Package main implements the article search API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jhellingsdata/search-app/engine/embed"
	"github.com/jhellingsdata/search-app/engine/graph"
	"github.com/jhellingsdata/search-app/engine/search"
	"github.com/jhellingsdata/search-app/engine/semantic"
	"github.com/jhellingsdata/search-app/engine/store"
	"github.com/jhellingsdata/search-app/pkg/metrics"
	"github.com/jhellingsdata/search-app/pkg/mid"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	OpenAIKey     string
	EmbedModel    string
	EmbedDim      int
	QdrantURL     string
	Collection    string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	CORSOrigin    string
	RatePerMinute int
	ArticlesPath  string
	UseS3         bool
	S3Bucket      string
	S3Key         string
}

func loadConfig() Config {
	_ = godotenv.Load()
	return Config{
		Port:          envOr("PORT", "8000"),
		OpenAIKey:     envOr("OPENAI_API_KEY", ""),
		EmbedModel:    envOr("EMBEDDING_MODEL", embed.DefaultModel),
		EmbedDim:      envIntOr("EMBEDDING_DIMENSION", embed.DefaultDimension),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "articles"),
		Neo4jURL:      envOr("NEO4J_URL", ""),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     envOr("NEO4J_PASS", "password"),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		RatePerMinute: envIntOr("RATE_LIMIT_PER_MINUTE", 30),
		ArticlesPath:  envOr("ARTICLES_PATH", "data/articles.json"),
		UseS3:         envOr("USE_S3", "") == "true",
		S3Bucket:      envOr("S3_BUCKET", ""),
		S3Key:         envOr("S3_ARTICLES_KEY", "articles.json"),
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

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Article corpus (S3 or local file) ---
	articles, err := loadArticles(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("load articles: %w", err)
	}
	logger.Info("corpus loaded", "articles", articles.Len())

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection, logger)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Connect to Neo4j (optional) ---
	var graphStore *graph.Store
	if cfg.Neo4jURL != "" {
		graphStore, err = graph.New(cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass, logger)
		if err != nil {
			return fmt.Errorf("neo4j connect: %w", err)
		}
		defer graphStore.Close(ctx)
	}

	// --- Build search service ---
	embedder := embed.New(cfg.OpenAIKey,
		embed.WithModel(cfg.EmbedModel),
		embed.WithDimension(cfg.EmbedDim),
	)
	searchSvc := search.New(embedder, vectorStore, articles, logger)

	// --- HTTP server ---
	reg := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("POST /search", handleSearch(searchSvc, reg, logger))
	mux.HandleFunc("GET /categories", handleCategories(searchSvc))
	mux.HandleFunc("GET /stats", handleStats(searchSvc, logger))
	var related relatedFinder
	if graphStore != nil {
		related = graphStore
	}
	mux.HandleFunc("GET /related/{slug}", handleRelated(related, logger))

	limiter := mid.NewRateLimiter(cfg.RatePerMinute, cfg.RatePerMinute)
	defer limiter.Close()
	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Observe(logger, reg),
		mid.Trace("search-api"),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(limiter),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// loadArticles builds the in-memory corpus, from S3 when configured and the
// local file otherwise.
func loadArticles(ctx context.Context, cfg Config, logger *slog.Logger) (*store.ArticleStore, error) {
	if !cfg.UseS3 {
		return store.Open(cfg.ArticlesPath)
	}
	s3c, err := store.NewS3Client(ctx)
	if err != nil {
		return nil, err
	}
	corpus, err := store.LoadCorpus(ctx, store.CorpusConfig{
		UseS3:     true,
		Bucket:    cfg.S3Bucket,
		Key:       cfg.S3Key,
		LocalPath: cfg.ArticlesPath,
	}, s3c, logger)
	if err != nil {
		return nil, err
	}
	return store.NewWithArticles(cfg.ArticlesPath, corpus), nil
}

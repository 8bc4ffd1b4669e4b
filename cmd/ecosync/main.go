// Package main implements the ecosync CLI: bulk sync, embedding, targeted
// updates and index administration for the article search pipeline.
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
	"github.com/spf13/cobra"

	"github.com/jhellingsdata/search-app/engine/embed"
	"github.com/jhellingsdata/search-app/engine/graph"
	"github.com/jhellingsdata/search-app/engine/scraper"
	"github.com/jhellingsdata/search-app/engine/semantic"
	"github.com/jhellingsdata/search-app/engine/store"
	"github.com/jhellingsdata/search-app/engine/sync"
)

// Config holds all environment-based configuration.
type Config struct {
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
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "ecosync",
		Short:         "Sync, embed and index articles for semantic search",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSyncCmd(logger),
		newEmbedCmd(logger),
		newUpdateCmd(logger),
		newInitIndexCmd(logger),
		newStatsCmd(logger),
	)
	return root
}

// pipeline bundles the wired collaborators behind the subcommands.
type pipeline struct {
	orch    *sync.Orchestrator
	vectors *semantic.VectorStore
	embDim  int
	close   func(ctx context.Context)
}

// buildPipeline wires the full orchestrator. retries > 0 wraps embedding
// calls in a bounded-backoff decorator; the default is the pipeline's usual
// fail-and-skip behavior.
func buildPipeline(ctx context.Context, cfg Config, logger *slog.Logger, opts sync.Options, retries int) (*pipeline, error) {
	articles, err := store.Open(cfg.ArticlesPath)
	if err != nil {
		return nil, fmt.Errorf("open article store: %w", err)
	}
	ledger, err := store.OpenLedger(cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	vectors, err := semantic.New(cfg.QdrantURL, cfg.Collection, logger)
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}

	var graphStore *graph.Store
	if cfg.Neo4jURL != "" {
		graphStore, err = graph.New(cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass, logger)
		if err != nil {
			vectors.Close()
			return nil, fmt.Errorf("neo4j connect: %w", err)
		}
	}

	var embedder sync.Embedder = embed.New(cfg.OpenAIKey,
		embed.WithModel(cfg.EmbedModel),
		embed.WithDimension(cfg.EmbedDim),
	)
	if retries > 0 {
		embedder = newRetryEmbedder(embedder, retries)
	}

	syncCfg := sync.Config{
		Site:     scraper.New(cfg.BaseURL, scraper.WithLogger(logger)),
		Embedder: embedder,
		Index:    vectors,
		Ledger:   ledger,
		Articles: articles,
		Options:  opts,
		Log:      logger,
	}
	if graphStore != nil {
		syncCfg.Graph = graphStore
	}

	return &pipeline{
		orch:    sync.New(syncCfg),
		vectors: vectors,
		embDim:  cfg.EmbedDim,
		close: func(ctx context.Context) {
			vectors.Close()
			if graphStore != nil {
				graphStore.Close(ctx)
			}
		},
	}, nil
}

func newSyncCmd(logger *slog.Logger) *cobra.Command {
	var (
		maxPages     int
		minPages     int
		skipExisting bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Walk the listing pages and pull new articles into the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			p, err := buildPipeline(cmd.Context(), cfg, logger, sync.Options{
				MaxPages:     maxPages,
				MinPages:     minPages,
				SkipExisting: skipExisting,
			}, 0)
			if err != nil {
				return err
			}
			defer p.close(cmd.Context())

			newCount, updatedCount, err := p.orch.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sync complete: %d new, %d updated\n", newCount, updatedCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "limit the pagination walk (0 = all pages)")
	cmd.Flags().IntVar(&minPages, "min-pages", 0, "always scan at least this many pages before early-stopping")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "skip stubs already in the article store")
	return cmd
}

func newEmbedCmd(logger *slog.Logger) *cobra.Command {
	var (
		force   bool
		retries int
	)
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed stored articles and upsert them to the vector index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			p, err := buildPipeline(cmd.Context(), cfg, logger, sync.Options{}, retries)
			if err != nil {
				return err
			}
			defer p.close(cmd.Context())

			records, err := p.orch.ProcessEmbeddings(cmd.Context(), force)
			if err != nil {
				return err
			}
			if err := p.orch.UpsertEmbeddings(cmd.Context(), records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "embedded and upserted %d articles\n", len(records))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-embed articles already in the ledger")
	cmd.Flags().IntVar(&retries, "retries", 0, "retry failed embedding calls up to N times with backoff")
	return cmd
}

func newUpdateCmd(logger *slog.Logger) *cobra.Command {
	var (
		oldSlug   string
		noReembed bool
	)
	cmd := &cobra.Command{
		Use:   "update <url-or-slug>",
		Short: "Re-scrape one article, with optional rename and re-embed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			p, err := buildPipeline(cmd.Context(), cfg, logger, sync.Options{}, 0)
			if err != nil {
				return err
			}
			defer p.close(cmd.Context())

			if !p.orch.UpdateOne(cmd.Context(), args[0], oldSlug, !noReembed) {
				return fmt.Errorf("update failed for %s (see logs)", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&oldSlug, "old-slug", "", "previous slug to remove (rename)")
	cmd.Flags().BoolVar(&noReembed, "no-reembed", false, "skip re-embedding and index writes")
	return cmd
}

func newInitIndexCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "init-index",
		Short: "Create the vector collection if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			vectors, err := semantic.New(cfg.QdrantURL, cfg.Collection, logger)
			if err != nil {
				return err
			}
			defer vectors.Close()

			if err := vectors.EnsureCollection(cmd.Context(), uint64(cfg.EmbedDim)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "collection %s ready (dimension %d)\n", cfg.Collection, cfg.EmbedDim)
			return nil
		},
	}
}

func newStatsCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			articles, err := store.Open(cfg.ArticlesPath)
			if err != nil {
				return err
			}
			vectors, err := semantic.New(cfg.QdrantURL, cfg.Collection, logger)
			if err != nil {
				return err
			}
			defer vectors.Close()

			stats, err := vectors.Describe(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "articles: %d\nvectors: %d\ndimension: %d\n",
				articles.Len(), stats.VectorCount, stats.Dimension)
			return nil
		},
	}
}

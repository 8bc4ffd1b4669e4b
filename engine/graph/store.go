// Package graph mirrors article relationships into Neo4j. The graph is a
// secondary view over the article corpus: sync failures here are logged by
// callers and never block the main pipeline.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/jhellingsdata/search-app/engine/domain"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Neighbor is an article reachable over a RELATED_TO edge.
type Neighbor struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Label string `json:"label"`
}

// Store writes and reads the article relationship graph.
type Store struct {
	driver     neo4j.DriverWithContext
	log        *slog.Logger
	newSession func(ctx context.Context) runner // for testing
}

// New connects to Neo4j with basic auth. Close must be called when done.
func New(uri, user, password string, log *slog.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: connect %s: %w", uri, err)
	}
	return &Store{driver: driver, log: log.With("component", "graph")}, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (s *Store) session(ctx context.Context) runner {
	if s.newSession != nil {
		return s.newSession(ctx)
	}
	return &sessionAdapter{sess: s.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// SaveArticle MERGEs the article node and its RELATED_TO edges. Related
// targets that have not been scraped yet become stub nodes carrying only a
// slug; a later SaveArticle for that slug fills in the rest.
func (s *Store) SaveArticle(ctx context.Context, rec domain.ArticleRecord) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `
		MERGE (a:Article {slug: $slug})
		SET a.title = $title, a.url = $url, a.main_category = $main_category, a.date = $date`,
		map[string]any{
			"slug":          rec.Slug,
			"title":         rec.Title,
			"url":           rec.URL,
			"main_category": rec.MainCategory,
			"date":          rec.Date,
		})
	if err != nil {
		return fmt.Errorf("graph: save article %s: %w", rec.Slug, err)
	}
	return s.linkRelated(ctx, sess, rec.Slug, rec.RelatedArticles)
}

// LinkRelated MERGEs RELATED_TO edges from slug to each related article.
func (s *Store) LinkRelated(ctx context.Context, slug string, related []domain.RelatedArticle) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)
	return s.linkRelated(ctx, sess, slug, related)
}

func (s *Store) linkRelated(ctx context.Context, sess runner, slug string, related []domain.RelatedArticle) error {
	for _, rel := range related {
		_, err := sess.Run(ctx, `
			MERGE (a:Article {slug: $slug})
			MERGE (b:Article {slug: $other})
			MERGE (a)-[r:RELATED_TO]->(b)
			SET r.label = $label`,
			map[string]any{"slug": slug, "other": rel.Slug, "label": rel.Label})
		if err != nil {
			return fmt.Errorf("graph: link %s -> %s: %w", slug, rel.Slug, err)
		}
	}
	return nil
}

// Related returns the articles connected to slug in either edge direction.
func (s *Store) Related(ctx context.Context, slug string) ([]Neighbor, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `
		MATCH (:Article {slug: $slug})-[r:RELATED_TO]-(b:Article)
		RETURN b, r.label AS label`,
		map[string]any{"slug": slug})
	if err != nil {
		return nil, fmt.Errorf("graph: related %s: %w", slug, err)
	}

	var neighbors []Neighbor
	for res.Next(ctx) {
		rec := res.Record()
		node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "b")
		if err != nil {
			return nil, fmt.Errorf("graph: related %s: decode node: %w", slug, err)
		}
		n := Neighbor{
			Slug:  strProp(node.Props, "slug"),
			Title: strProp(node.Props, "title"),
			URL:   strProp(node.Props, "url"),
		}
		if label, ok := rec.Get("label"); ok {
			if lbl, ok := label.(string); ok {
				n.Label = lbl
			}
		}
		neighbors = append(neighbors, n)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("graph: related %s: %w", slug, err)
	}
	return neighbors, nil
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

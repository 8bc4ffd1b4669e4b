package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jhellingsdata/search-app/engine/domain"
	"github.com/jhellingsdata/search-app/pkg/fn"
)

// pointsAPI is the slice of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	SetPayload(ctx context.Context, in *pb.SetPayloadPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// collectionsAPI is the slice of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
}

// VectorStore talks to a qdrant collection holding one point per article.
// Point IDs are derived deterministically from the article slug, so repeated
// upserts of the same article overwrite in place.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	log         *slog.Logger
}

// New dials the qdrant gRPC endpoint. Close must be called when done.
func New(addr, collection string, log *slog.Logger) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant: %w", err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		log:         log.With("component", "vectorstore", "collection", collection),
	}, nil
}

// NewWithClients wires a store over pre-built clients. Used by tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string, log *slog.Logger) *VectorStore {
	return &VectorStore{
		points:      points,
		collections: collections,
		collection:  collection,
		log:         log.With("component", "vectorstore", "collection", collection),
	}
}

func (s *VectorStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the collection with cosine distance if it does not
// exist yet. Calling it against an existing collection is a no-op.
func (s *VectorStore) EnsureCollection(ctx context.Context, dimension uint64) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dimension,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", s.collection, err)
	}
	s.log.Info("collection created", "dimension", dimension)
	return nil
}

// Describe reports the live point count and configured vector dimension.
func (s *VectorStore) Describe(ctx context.Context) (IndexStats, error) {
	count, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          boolPtr(true),
	})
	if err != nil {
		return IndexStats{}, fmt.Errorf("semantic: count points: %w", err)
	}
	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return IndexStats{}, fmt.Errorf("semantic: collection info: %w", err)
	}
	return IndexStats{
		VectorCount: count.GetResult().GetCount(),
		Dimension:   info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize(),
	}, nil
}

// Upsert writes embedding records in batches. If a batch fails the write is
// aborted and the error notes that earlier batches have already been applied.
func (s *VectorStore) Upsert(ctx context.Context, records []domain.EmbeddingRecord, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	batches := fn.Chunk(records, batchSize)
	for i, batch := range batches {
		points := make([]*pb.PointStruct, 0, len(batch))
		for _, rec := range batch {
			points = append(points, &pb.PointStruct{
				Id:      pointID(rec.Slug),
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: rec.Embedding}}},
				Payload: recordPayload(rec),
			})
		}
		_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           boolPtr(true),
		})
		if err != nil {
			s.log.Error("upsert batch failed, some points may have been written",
				"batch", i, "batches_total", len(batches), "err", err)
			return fmt.Errorf("semantic: upsert batch %d/%d: %w: %w", i+1, len(batches), domain.ErrVectorIndex, err)
		}
	}
	return nil
}

// Search runs a similarity query and returns the topK hits that pass the
// filter, with payload metadata unpacked.
func (s *VectorStore) Search(ctx context.Context, vector []float32, topK uint64, filter Filter) ([]SearchResult, error) {
	qf, err := buildFilter(filter)
	if err != nil {
		return nil, err
	}
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          topK,
		Filter:         qf,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w: %w", domain.ErrVectorIndex, err)
	}
	results := make([]SearchResult, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		results = append(results, resultFromPayload(hit.GetScore(), hit.GetPayload()))
	}
	return results, nil
}

// Fetch reports whether a point for the slug exists in the collection.
func (s *VectorStore) Fetch(ctx context.Context, slug string) (bool, error) {
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: s.collection,
		Ids:            []*pb.PointId{pointID(slug)},
	})
	if err != nil {
		return false, fmt.Errorf("semantic: fetch %s: %w: %w", slug, domain.ErrVectorIndex, err)
	}
	return len(resp.GetResult()) > 0, nil
}

// DeleteBySlug removes the article's point. Deleting a missing point is not
// an error.
func (s *VectorStore) DeleteBySlug(ctx context.Context, slug string) error {
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(slug)}},
			},
		},
		Wait: boolPtr(true),
	})
	if err != nil {
		return fmt.Errorf("semantic: delete %s: %w: %w", slug, domain.ErrVectorIndex, err)
	}
	return nil
}

// UpdateMetadata overwrites payload fields on an existing point without
// touching its vector. Keys are validated before the remote call so a bad
// key never results in a partial write.
func (s *VectorStore) UpdateMetadata(ctx context.Context, slug string, metadata map[string]any) error {
	if err := domain.ValidateMetadata(metadata); err != nil {
		return err
	}
	payload := make(map[string]*pb.Value, len(metadata))
	for k, v := range metadata {
		payload[k] = toValue(v)
	}
	_, err := s.points.SetPayload(ctx, &pb.SetPayloadPoints{
		CollectionName: s.collection,
		Payload:        payload,
		PointsSelector: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(slug)}},
			},
		},
		Wait: boolPtr(true),
	})
	if err != nil {
		return fmt.Errorf("semantic: set payload %s: %w: %w", slug, domain.ErrVectorIndex, err)
	}
	return nil
}

// pointID maps a slug to a stable UUID so re-embedding an article replaces
// its point instead of accumulating duplicates.
func pointID(slug string) *pb.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(slug))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()}}
}

func recordPayload(rec domain.EmbeddingRecord) map[string]*pb.Value {
	return map[string]*pb.Value{
		"slug":                 toValue(rec.Slug),
		"title":                toValue(rec.Title),
		"date":                 toValue(rec.Date),
		"date_timestamp":       toValue(rec.DateTimestamp),
		"url":                  toValue(rec.URL),
		"main_category":        toValue(rec.MainCategory),
		"secondary_categories": toValue(rec.SecondaryCategories),
		"charts":               toValue(rec.Charts),
		"teaser":               toValue(rec.Teaser),
	}
}

func resultFromPayload(score float32, payload map[string]*pb.Value) SearchResult {
	return SearchResult{
		Score:               score,
		Slug:                payload["slug"].GetStringValue(),
		Title:               payload["title"].GetStringValue(),
		URL:                 payload["url"].GetStringValue(),
		Date:                payload["date"].GetStringValue(),
		MainCategory:        payload["main_category"].GetStringValue(),
		SecondaryCategories: stringList(payload["secondary_categories"]),
		Charts:              stringList(payload["charts"]),
		Teaser:              payload["teaser"].GetStringValue(),
	}
}

func stringList(v *pb.Value) []string {
	values := v.GetListValue().GetValues()
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, item := range values {
		out = append(out, item.GetStringValue())
	}
	return out
}

// buildFilter translates the public filter into qdrant conditions. All
// conditions go into must, so they combine with AND.
func buildFilter(f Filter) (*pb.Filter, error) {
	var must []*pb.Condition
	if f.Category != "" {
		must = append(must, fieldMatch("main_category", f.Category))
	}
	if f.DateFrom != "" || f.DateTo != "" {
		r := &pb.Range{}
		if f.DateFrom != "" {
			ts, err := dateToUnix(f.DateFrom)
			if err != nil {
				return nil, err
			}
			r.Gte = float64Ptr(float64(ts))
		}
		if f.DateTo != "" {
			ts, err := dateToUnix(f.DateTo)
			if err != nil {
				return nil, err
			}
			r.Lte = float64Ptr(float64(ts))
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{Key: "date_timestamp", Range: r},
			},
		})
	}
	if len(must) == 0 {
		return nil, nil
	}
	return &pb.Filter{Must: must}, nil
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func dateToUnix(date string) (int64, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, domain.NewValidationError("date", date, domain.ErrInvalidDate)
	}
	return t.Unix(), nil
}

func toValue(v any) *pb.Value {
	switch val := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}
	case []string:
		items := make([]*pb.Value, 0, len(val))
		for _, s := range val {
			items = append(items, toValue(s))
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: items}}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

func boolPtr(b bool) *bool          { return &b }
func float64Ptr(f float64) *float64 { return &f }

package rag

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/qdrant/go-client/qdrant"

	"github.com/corvid-labs/mrsentry/internal/errs"
	"github.com/corvid-labs/mrsentry/internal/model"
)

// keywordIndexFields and textIndexFields list the payload indexes spec
// §4.4 "Collection lifecycle" requires: keyword for identity/classification
// fields, boolean for is_definition, text for the full-text-searchable
// fields.
var keywordIndexFields = []string{
	"id", "file", "language", "kind", "symbol", "symbol_path",
	"content_sha256", "tags", "routes", "search_terms",
}

const boolIndexField = "is_definition"

var textIndexFields = []string{"search_blob", "search_terms"}

// Store wraps the low-level Qdrant client directly, not through a higher
// vectorstore abstraction, because the payload-index, scroll, and
// filtered-search primitives this package needs aren't exposed by one.
// See DESIGN.md.
type Store struct {
	client *qdrant.Client
	cfg    Config
}

// NewStore dials the Qdrant gRPC endpoint described by cfg.
func NewStore(cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "rag.qdrant", "connect to qdrant", err)
	}
	return &Store{client: client, cfg: cfg}, nil
}

func toQdrantDistance(d Distance) qdrant.Distance {
	switch d {
	case DistanceDot:
		return qdrant.Distance_Dot
	case DistanceEuclidean:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

// EnsureCollection runs the "fresh index" lifecycle: delete-if-exists,
// create with the configured dimensionality/distance, then create every
// required payload index.
func (s *Store) EnsureCollection(ctx context.Context) error {
	_ = s.client.DeleteCollection(ctx, s.cfg.Collection)

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.Dimensionality),
			Distance: toQdrantDistance(s.cfg.Distance),
		}),
	})
	if err != nil {
		return errs.Wrap(errs.Storage, "rag.qdrant", "create collection", err)
	}

	for _, field := range keywordIndexFields {
		if err := s.createFieldIndex(ctx, field, qdrant.FieldType_FieldTypeKeyword); err != nil {
			return err
		}
	}
	if err := s.createFieldIndex(ctx, boolIndexField, qdrant.FieldType_FieldTypeBool); err != nil {
		return err
	}
	for _, field := range textIndexFields {
		if err := s.createFieldIndex(ctx, field, qdrant.FieldType_FieldTypeText); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createFieldIndex(ctx context.Context, field string, kind qdrant.FieldType) error {
	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.cfg.Collection,
		FieldName:      field,
		FieldType:      kind.Enum(),
	})
	if err != nil {
		return errs.Wrap(errs.Storage, "rag.qdrant", fmt.Sprintf("create field index %q", field), err)
	}
	return nil
}

// PointIDFor derives a stable 64-bit point id from an external id string
// using xxhash. See DESIGN.md.
func PointIDFor(externalID string) uint64 {
	return xxhash.Sum64String(externalID)
}

// UpsertBatch writes one batch of (externalID, vector, payload) triples.
// len(vector) must equal the collection's configured dimensionality for
// every point.
func (s *Store) UpsertBatch(ctx context.Context, externalIDs []string, vectors [][]float32, payloads []model.VectorPayload) error {
	if len(externalIDs) != len(vectors) || len(vectors) != len(payloads) {
		return errs.New(errs.Validation, "rag.qdrant", "mismatched batch lengths")
	}
	points := make([]*qdrant.PointStruct, len(externalIDs))
	for i, id := range externalIDs {
		if len(vectors[i]) != s.cfg.Dimensionality {
			return errs.New(errs.Storage, "rag.qdrant", fmt.Sprintf("vector for %q has dim %d, collection expects %d", id, len(vectors[i]), s.cfg.Dimensionality))
		}
		kv := payloads[i].ToKV()
		kv["external_id"] = id
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(PointIDFor(id)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(kv),
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return errs.WrapRetriable(errs.Storage, "rag.qdrant", "upsert batch", err)
	}
	return nil
}

// ScoredPoint is a search/scroll hit normalized away from the qdrant wire
// types so the retrieval package never imports the qdrant SDK directly.
type ScoredPoint struct {
	Score   float64
	Payload map[string]any
}

// VectorSearch runs a plain knn query against the collection, returning up
// to limit candidates with payload. No server-side score threshold is
// applied; that happens in the rerank pass.
func (s *Store) VectorSearch(ctx context.Context, vector []float32, limit int) ([]ScoredPoint, error) {
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errs.WrapRetriable(errs.Storage, "rag.qdrant", "vector search", err)
	}
	out := make([]ScoredPoint, 0, len(resp))
	for _, p := range resp {
		out = append(out, ScoredPoint{Score: float64(p.GetScore()), Payload: payloadToMap(p.GetPayload())})
	}
	return out, nil
}

// ScrollBySearchTerms runs the fallback-scroll path: an OR filter
// (min_should=1) over search_terms, returning up to limit points with no
// score.
func (s *Store) ScrollBySearchTerms(ctx context.Context, terms []string, limit int) ([]ScoredPoint, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	conditions := make([]*qdrant.Condition, len(terms))
	for i, t := range terms {
		conditions[i] = qdrant.NewMatch("search_terms", t)
	}
	resp, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Filter: &qdrant.Filter{
			Should:          conditions,
			MinShould:       &qdrant.MinShould{MinCount: 1, Conditions: conditions},
		},
		Limit:       qdrant.PtrOf(uint32(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errs.WrapRetriable(errs.Storage, "rag.qdrant", "scroll by search terms", err)
	}
	out := make([]ScoredPoint, 0, len(resp))
	for _, p := range resp {
		out = append(out, ScoredPoint{Score: 0, Payload: payloadToMap(p.GetPayload())})
	}
	return out, nil
}

func payloadToMap(raw map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			items = append(items, valueToAny(item))
		}
		return items
	default:
		return nil
	}
}

package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/domain"
)

// QdrantStore implements Store against a Qdrant server over gRPC.
type QdrantStore struct {
	client  *qdrant.Client
	timeout time.Duration
}

// NewQdrantStore connects to Qdrant using the supplied configuration.
func NewQdrantStore(cfg config.QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{client: client, timeout: timeout}, nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *QdrantStore) CreateCollection(ctx context.Context, name string, vectorSize uint64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("collection exists %s: %w", name, err)
	}
	return exists, nil
}

func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

func (s *QdrantStore) CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("collection info %s: %w", name, err)
	}
	out := &CollectionInfo{}
	if info.PointsCount != nil {
		out.PointsCount = *info.PointsCount
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		out.VectorSize = params.Size
	}
	return out, nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload, err := payloadToMap(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", p.ID, err)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         structs,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

func (s *QdrantStore) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(toQdrantFilter(filter)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("delete points from %s: %w", collection, err)
	}
	return nil
}

func (s *QdrantStore) Count(ctx context.Context, collection string, filter Filter) (uint64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         toQdrantFilter(filter),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count points in %s: %w", collection, err)
	}
	return count, nil
}

// Scroll pages by requesting one extra point; its id becomes the next
// offset, which keeps pagination working through the simplified client API.
func (s *QdrantStore) Scroll(ctx context.Context, collection string, filter Filter, limit int, withVectors bool, offset string) ([]Point, string, error) {
	req := &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         toQdrantFilter(filter),
		Limit:          qdrant.PtrOf(uint32(limit + 1)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	}
	if offset != "" {
		req.Offset = qdrant.NewIDUUID(offset)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	retrieved, err := s.client.Scroll(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("scroll %s: %w", collection, err)
	}

	nextOffset := ""
	if len(retrieved) > limit {
		nextOffset = retrieved[limit].GetId().GetUuid()
		retrieved = retrieved[:limit]
	}

	points := make([]Point, 0, len(retrieved))
	for _, r := range retrieved {
		payload, err := mapToPayload(valueMapToAny(r.GetPayload()))
		if err != nil {
			return nil, "", fmt.Errorf("decode payload: %w", err)
		}
		p := Point{ID: r.GetId().GetUuid(), Payload: payload}
		if withVectors {
			p.Vector = r.GetVectors().GetVector().GetData()
		}
		points = append(points, p)
	}
	return points, nextOffset, nil
}

func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]domain.ScoredChunk, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         toQdrantFilter(filter),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	chunks := make([]domain.ScoredChunk, 0, len(scored))
	for _, sp := range scored {
		payload, err := mapToPayload(valueMapToAny(sp.GetPayload()))
		if err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		chunks = append(chunks, domain.ScoredChunk{
			PointID: sp.GetId().GetUuid(),
			Score:   float64(sp.GetScore()),
			Payload: payload,
		})
	}
	return chunks, nil
}

func (s *QdrantStore) CreateAlias(ctx context.Context, alias, collection string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.CreateAlias(ctx, alias, collection); err != nil {
		return fmt.Errorf("create alias %s -> %s: %w", alias, collection, err)
	}
	return nil
}

func (s *QdrantStore) DeleteAlias(ctx context.Context, alias string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.DeleteAlias(ctx, alias); err != nil {
		return fmt.Errorf("delete alias %s: %w", alias, err)
	}
	return nil
}

// SwapAlias deletes the previous mapping and creates the new one in a
// single UpdateAliases operation, which Qdrant applies atomically.
func (s *QdrantStore) SwapAlias(ctx context.Context, alias, collection string) error {
	actions := []*qdrant.AliasOperations{
		{Action: &qdrant.AliasOperations_DeleteAlias{
			DeleteAlias: &qdrant.DeleteAlias{AliasName: alias},
		}},
		{Action: &qdrant.AliasOperations_CreateAlias{
			CreateAlias: &qdrant.CreateAlias{AliasName: alias, CollectionName: collection},
		}},
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.UpdateAliases(ctx, actions); err == nil {
		return nil
	}

	// First swap for this alias: there is no previous mapping to delete.
	if err := s.client.UpdateAliases(ctx, actions[1:]); err != nil {
		return fmt.Errorf("swap alias %s -> %s: %w", alias, collection, err)
	}
	return nil
}

func (s *QdrantStore) ResolveAlias(ctx context.Context, alias string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == alias {
			return a.GetCollectionName(), nil
		}
	}
	return "", ErrAliasNotFound
}

// toQdrantFilter converts the portable filter into Qdrant conditions.
func toQdrantFilter(filter Filter) *qdrant.Filter {
	if filter.Empty() {
		return nil
	}
	out := &qdrant.Filter{}
	for _, c := range filter.Must {
		out.Must = append(out.Must, toCondition(c))
	}
	for _, c := range filter.MustNot {
		out.MustNot = append(out.MustNot, toCondition(c))
	}
	return out
}

func toCondition(c Condition) *qdrant.Condition {
	switch {
	case c.MatchInt != nil:
		return qdrant.NewMatchInt(c.Field, *c.MatchInt)
	case len(c.Any) > 0:
		return qdrant.NewMatchKeywords(c.Field, c.Any...)
	default:
		return qdrant.NewMatch(c.Field, c.Match)
	}
}

// payloadToMap round-trips the typed payload through JSON so optional fields
// stay nullable and the stored shape matches the wire schema.
func payloadToMap(p domain.ChunkPayload) (map[string]any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func mapToPayload(m map[string]any) (domain.ChunkPayload, error) {
	var p domain.ChunkPayload
	data, err := json.Marshal(m)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	return p, nil
}

// valueMapToAny converts a Qdrant payload into plain Go values.
func valueMapToAny(values map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
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
		items := kind.ListValue.GetValues()
		list := make([]any, 0, len(items))
		for _, item := range items {
			list = append(list, valueToAny(item))
		}
		return list
	case *qdrant.Value_StructValue:
		return valueMapToAny(kind.StructValue.GetFields())
	default:
		return nil
	}
}

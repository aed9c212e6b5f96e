package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"code-review-orchestrator/internal/domain"
)

// MemoryStore is an in-process Store implementation with cosine scoring.
// It backs unit and end-to-end tests and small local deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	aliases     map[string]string
}

type memoryCollection struct {
	vectorSize uint64
	points     map[string]Point
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
		aliases:     make(map[string]string),
	}
}

// resolve maps an alias to its collection, or returns the name unchanged.
func (s *MemoryStore) resolve(name string) string {
	if target, ok := s.aliases[name]; ok {
		return target
	}
	return name
}

func (s *MemoryStore) collection(name string) (*memoryCollection, error) {
	col, ok := s.collections[s.resolve(name)]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", name)
	}
	return col, nil
}

func (s *MemoryStore) CreateCollection(_ context.Context, name string, vectorSize uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("collection %s already exists", name)
	}
	s.collections[name] = &memoryCollection{vectorSize: vectorSize, points: make(map[string]Point)}
	return nil
}

func (s *MemoryStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *MemoryStore) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[s.resolve(name)]
	return ok, nil
}

func (s *MemoryStore) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) CollectionInfo(_ context.Context, name string) (*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, err := s.collection(name)
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{PointsCount: uint64(len(col.points)), VectorSize: col.vectorSize}, nil
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		col.points[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) DeleteByFilter(_ context.Context, collection string, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	for id, p := range col.points {
		if matches(p.Payload, filter) {
			delete(col.points, id)
		}
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context, collection string, filter Filter) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, p := range col.points {
		if matches(p.Payload, filter) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Scroll(_ context.Context, collection string, filter Filter, limit int, withVectors bool, offset string) ([]Point, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, err := s.collection(collection)
	if err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(col.points))
	for id, p := range col.points {
		if matches(p.Payload, filter) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	start := 0
	if offset != "" {
		start = sort.SearchStrings(ids, offset)
	}

	var out []Point
	next := ""
	for i := start; i < len(ids); i++ {
		if len(out) == limit {
			next = ids[i]
			break
		}
		p := col.points[ids[i]]
		if !withVectors {
			p.Vector = nil
		}
		out = append(out, p)
	}
	return out, next, nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, vector []float32, filter Filter, limit int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	var hits []domain.ScoredChunk
	for id, p := range col.points {
		if !matches(p.Payload, filter) {
			continue
		}
		hits = append(hits, domain.ScoredChunk{
			PointID: id,
			Score:   cosine(vector, p.Vector),
			Payload: p.Payload,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *MemoryStore) CreateAlias(_ context.Context, alias, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		return fmt.Errorf("collection %s not found", collection)
	}
	s.aliases[alias] = collection
	return nil
}

func (s *MemoryStore) DeleteAlias(_ context.Context, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.aliases, alias)
	return nil
}

func (s *MemoryStore) SwapAlias(_ context.Context, alias, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		return fmt.Errorf("collection %s not found", collection)
	}
	s.aliases[alias] = collection
	return nil
}

func (s *MemoryStore) ResolveAlias(_ context.Context, alias string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if target, ok := s.aliases[alias]; ok {
		return target, nil
	}
	return "", ErrAliasNotFound
}

// matches evaluates the filter against payload fields used by the system.
func matches(p domain.ChunkPayload, filter Filter) bool {
	for _, c := range filter.Must {
		if !conditionMatches(p, c) {
			return false
		}
	}
	for _, c := range filter.MustNot {
		if conditionMatches(p, c) {
			return false
		}
	}
	return true
}

func conditionMatches(p domain.ChunkPayload, c Condition) bool {
	if c.MatchInt != nil {
		return c.Field == "pr_number" && int64(p.PRNumber) == *c.MatchInt
	}
	value := fieldValue(p, c.Field)
	if len(c.Any) > 0 {
		for _, v := range c.Any {
			if v == value {
				return true
			}
		}
		return false
	}
	return value == c.Match
}

func fieldValue(p domain.ChunkPayload, field string) string {
	switch field {
	case "path":
		return p.Path
	case "branch":
		return p.Branch
	case "workspace":
		return p.Workspace
	case "project":
		return p.Project
	case "language":
		return p.Language
	case "content_type":
		return string(p.ContentType)
	case "commit":
		return p.Commit
	}
	return ""
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Package vectorstore defines the narrow vector-database contract the
// indexer and retriever depend on, with a Qdrant adapter for production and
// an in-memory implementation for tests.
package vectorstore

import (
	"context"
	"errors"

	"code-review-orchestrator/internal/domain"
)

// ErrAliasNotFound is returned when an alias does not resolve.
var ErrAliasNotFound = errors.New("alias not found")

// Point is one stored vector with its typed payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload domain.ChunkPayload
}

// Condition is a single payload predicate. Exactly one of Match, Any or
// MatchInt is set.
type Condition struct {
	Field    string
	Match    string
	Any      []string
	MatchInt *int64
}

// MatchField builds an equality condition.
func MatchField(field, value string) Condition {
	return Condition{Field: field, Match: value}
}

// MatchAny builds a field-any-of condition.
func MatchAny(field string, values ...string) Condition {
	return Condition{Field: field, Any: values}
}

// MatchInt builds an integer equality condition.
func MatchInt(field string, value int64) Condition {
	return Condition{Field: field, MatchInt: &value}
}

// Filter combines must and must-not conditions.
type Filter struct {
	Must    []Condition
	MustNot []Condition
}

// Empty reports whether the filter has no conditions.
func (f Filter) Empty() bool {
	return len(f.Must) == 0 && len(f.MustNot) == 0
}

// CollectionInfo describes one collection.
type CollectionInfo struct {
	PointsCount uint64
	VectorSize  uint64
}

// Store is the vector-database contract. Implementations must be safe for
// concurrent use; write serialisation per project is the indexer's job.
type Store interface {
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)
	CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	Upsert(ctx context.Context, collection string, points []Point) error
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error
	Count(ctx context.Context, collection string, filter Filter) (uint64, error)
	// Scroll pages through points matching filter. Pass the returned offset
	// to continue; an empty offset means the scan is complete.
	Scroll(ctx context.Context, collection string, filter Filter, limit int, withVectors bool, offset string) ([]Point, string, error)
	Query(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]domain.ScoredChunk, error)

	CreateAlias(ctx context.Context, alias, collection string) error
	DeleteAlias(ctx context.Context, alias string) error
	// SwapAlias atomically repoints alias at collection, deleting any
	// previous mapping in the same operation.
	SwapAlias(ctx context.Context, alias, collection string) error
	ResolveAlias(ctx context.Context, alias string) (string, error)
}

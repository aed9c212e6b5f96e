package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"code-review-orchestrator/internal/domain"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateCollection(ctx, "col_v1", 3))
	require.Error(t, store.CreateCollection(ctx, "col_v1", 3), "duplicate create must fail")

	points := []Point{
		{ID: "p1", Vector: []float32{1, 0, 0}, Payload: domain.ChunkPayload{Path: "a.go", Branch: "main"}},
		{ID: "p2", Vector: []float32{0, 1, 0}, Payload: domain.ChunkPayload{Path: "b.go", Branch: "main"}},
		{ID: "p3", Vector: []float32{0, 0, 1}, Payload: domain.ChunkPayload{Path: "a.go", Branch: "feature"}},
	}
	require.NoError(t, store.Upsert(ctx, "col_v1", points))

	info, err := store.CollectionInfo(ctx, "col_v1")
	require.NoError(t, err)
	require.EqualValues(t, 3, info.PointsCount)

	// Alias indirection resolves for reads.
	require.NoError(t, store.CreateAlias(ctx, "col", "col_v1"))
	count, err := store.Count(ctx, "col", Filter{Must: []Condition{MatchField("branch", "main")}})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// Query scores by cosine similarity, filtered by branch.
	hits, err := store.Query(ctx, "col", []float32{1, 0, 0}, Filter{Must: []Condition{MatchField("branch", "main")}}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "p1", hits[0].PointID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-9)

	// Delete by path+branch filter.
	require.NoError(t, store.DeleteByFilter(ctx, "col", Filter{Must: []Condition{
		MatchAny("path", "a.go"), MatchField("branch", "main"),
	}}))
	count, err = store.Count(ctx, "col", Filter{})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestMemoryStoreScrollPagination(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateCollection(ctx, "c", 2))

	var pts []Point
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		pts = append(pts, Point{ID: id, Vector: []float32{1, 1}, Payload: domain.ChunkPayload{Branch: "main", Path: id}})
	}
	require.NoError(t, store.Upsert(ctx, "c", pts))

	var all []Point
	offset := ""
	for {
		page, next, err := store.Scroll(ctx, "c", Filter{}, 2, false, offset)
		require.NoError(t, err)
		all = append(all, page...)
		if next == "" {
			break
		}
		offset = next
	}
	require.Len(t, all, 5)
}

func TestMemoryStoreAliasSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateCollection(ctx, "v1", 2))
	require.NoError(t, store.CreateCollection(ctx, "v2", 2))

	require.NoError(t, store.SwapAlias(ctx, "alias", "v1"))
	target, err := store.ResolveAlias(ctx, "alias")
	require.NoError(t, err)
	require.Equal(t, "v1", target)

	require.NoError(t, store.SwapAlias(ctx, "alias", "v2"))
	target, err = store.ResolveAlias(ctx, "alias")
	require.NoError(t, err)
	require.Equal(t, "v2", target)

	_, err = store.ResolveAlias(ctx, "missing")
	require.ErrorIs(t, err, ErrAliasNotFound)
}

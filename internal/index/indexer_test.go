package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/embedding"
	"code-review-orchestrator/internal/types"
	"code-review-orchestrator/internal/vectorstore"
)

func testIndexingConfig() config.IndexingConfig {
	cfg := config.Defaults().Indexing
	cfg.MinChunkSize = 10
	return cfg
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

var repoFiles = map[string]string{
	"src/util.py":  "def helper(x):\n    return x * 2\n\n\ndef other(y):\n    return y + 1\n\n\ndef third(z):\n    return z - 1\n\n\ndef fourth(a):\n    return a\n",
	"src/main.py":  "import util\n\n\ndef main():\n    print(util.helper(21))\n\n\ndef run():\n    main()\n\n\ndef stop():\n    pass\n",
	"README.md":    "# Demo\n\nSome description here with enough text to chunk.\n",
	"image.png":    "\x89PNG\x00\x00binarydata",
	"ignored.lock": "lockfile contents",
}

func TestIndexRepositoryBasics(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	ix := New(store, &embedding.HashEmbedder{Dim: 8}, testIndexingConfig(), "repo")

	root := writeRepo(t, repoFiles)
	stats, err := ix.IndexRepository(ctx, root, "ws", "proj", "main", "c1")
	require.NoError(t, err)
	require.Equal(t, 3, stats.Files, "binary and lockfile must be skipped")
	require.Greater(t, stats.Chunks, 0)

	alias := ix.Alias("ws", "proj")
	target, err := store.ResolveAlias(ctx, alias)
	require.NoError(t, err)
	require.Equal(t, stats.Collection, target)

	// Every point carries the indexed branch.
	count, err := store.Count(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchField("branch", "main")},
	})
	require.NoError(t, err)
	require.EqualValues(t, stats.Chunks, count)
}

func TestReindexPreservesOtherBranches(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	ix := New(store, &embedding.HashEmbedder{Dim: 8}, testIndexingConfig(), "repo")

	root := writeRepo(t, repoFiles)
	_, err := ix.IndexRepository(ctx, root, "ws", "proj", "main", "c1")
	require.NoError(t, err)

	stats, err := ix.IndexRepository(ctx, root, "ws", "proj", "feature/x", "c2")
	require.NoError(t, err)
	require.Greater(t, stats.Migrated, 0, "main branch points must be carried over")

	alias := ix.Alias("ws", "proj")
	mainCount, err := store.Count(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchField("branch", "main")},
	})
	require.NoError(t, err)
	require.Greater(t, mainCount, uint64(0))

	featureCount, err := store.Count(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchField("branch", "feature/x")},
	})
	require.NoError(t, err)
	require.Greater(t, featureCount, uint64(0))

	// Only one live generation remains.
	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, names, 1)
}

// failingEmbedder fails after a fixed number of successful batches.
type failingEmbedder struct {
	inner     embedding.Embedder
	remaining int
}

func (f *failingEmbedder) Dimension() int { return f.inner.Dimension() }

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.remaining <= 0 {
		return nil, errors.New("embedder exploded")
	}
	f.remaining--
	return f.inner.EmbedBatch(ctx, texts)
}

func TestFailedReindexLeavesLiveIndexIntact(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	good := New(store, &embedding.HashEmbedder{Dim: 8}, testIndexingConfig(), "repo")

	root := writeRepo(t, repoFiles)
	first, err := good.IndexRepository(ctx, root, "ws", "proj", "main", "c1")
	require.NoError(t, err)

	bad := New(store, &failingEmbedder{inner: &embedding.HashEmbedder{Dim: 8}}, testIndexingConfig(), "repo")
	_, err = bad.IndexRepository(ctx, root, "ws", "proj", "main", "c2")
	require.Error(t, err)

	// Alias still points at the first generation and it still has points.
	alias := good.Alias("ws", "proj")
	target, err := store.ResolveAlias(ctx, alias)
	require.NoError(t, err)
	require.Equal(t, first.Collection, target)

	info, err := store.CollectionInfo(ctx, alias)
	require.NoError(t, err)
	require.Greater(t, info.PointsCount, uint64(0))

	// The failed generation was cleaned up.
	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{first.Collection}, names)
}

func TestOrphanGenerationsCollectedOnNextIndex(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	ix := New(store, &embedding.HashEmbedder{Dim: 8}, testIndexingConfig(), "repo")

	// Simulate a crashed indexer: a versioned collection with no alias.
	alias := ix.Alias("ws", "proj")
	orphan := versionedName(alias, 123)
	require.NoError(t, store.CreateCollection(ctx, orphan, 8))

	root := writeRepo(t, repoFiles)
	stats, err := ix.IndexRepository(ctx, root, "ws", "proj", "main", "c1")
	require.NoError(t, err)

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{stats.Collection}, names, "orphan must be garbage-collected")
}

func TestBudgetRejection(t *testing.T) {
	ctx := context.Background()
	cfg := testIndexingConfig()
	cfg.MaxFiles = 2
	ix := New(vectorstore.NewMemoryStore(), &embedding.HashEmbedder{Dim: 8}, cfg, "repo")

	root := writeRepo(t, repoFiles)
	_, err := ix.IndexRepository(ctx, root, "ws", "proj", "main", "c1")

	var budgetErr *types.BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	require.Equal(t, "files", budgetErr.Kind)
}

func TestUpdateAndDeleteFiles(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	ix := New(store, &embedding.HashEmbedder{Dim: 8}, testIndexingConfig(), "repo")

	root := writeRepo(t, repoFiles)
	_, err := ix.IndexRepository(ctx, root, "ws", "proj", "main", "c1")
	require.NoError(t, err)
	alias := ix.Alias("ws", "proj")

	before, err := store.Count(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchField("path", "src/util.py")},
	})
	require.NoError(t, err)
	require.Greater(t, before, uint64(0))

	// Update replaces, never duplicates: same file content, same count.
	err = ix.UpdateFiles(ctx, "ws", "proj", "main", "c2", map[string]string{
		"src/util.py": repoFiles["src/util.py"],
	})
	require.NoError(t, err)
	after, err := store.Count(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchField("path", "src/util.py")},
	})
	require.NoError(t, err)
	require.Equal(t, before, after)

	require.NoError(t, ix.DeleteFiles(ctx, "ws", "proj", "main", []string{"src/util.py"}))
	gone, err := store.Count(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchField("path", "src/util.py")},
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, gone)
}

func TestDeleteBranch(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	ix := New(store, &embedding.HashEmbedder{Dim: 8}, testIndexingConfig(), "repo")

	root := writeRepo(t, repoFiles)
	_, err := ix.IndexRepository(ctx, root, "ws", "proj", "main", "c1")
	require.NoError(t, err)
	_, err = ix.IndexRepository(ctx, root, "ws", "proj", "feature", "c2")
	require.NoError(t, err)

	require.NoError(t, ix.DeleteBranch(ctx, "ws", "proj", "feature"))

	alias := ix.Alias("ws", "proj")
	featureCount, err := store.Count(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchField("branch", "feature")},
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, featureCount)

	mainCount, err := store.Count(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchField("branch", "main")},
	})
	require.NoError(t, err)
	require.Greater(t, mainCount, uint64(0))
}

func TestPRIndexingLifecycle(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	ix := New(store, &embedding.HashEmbedder{Dim: 8}, testIndexingConfig(), "repo")

	root := writeRepo(t, repoFiles)
	_, err := ix.IndexRepository(ctx, root, "ws", "proj", "main", "c1")
	require.NoError(t, err)
	alias := ix.Alias("ws", "proj")

	base, err := store.Count(ctx, alias, vectorstore.Filter{})
	require.NoError(t, err)

	err = ix.IndexPRFiles(ctx, "ws", "proj", "main", "c2", 77, map[string]string{
		"src/new_feature.py": "def fresh():\n    return 'new'\n\n\ndef more():\n    return 'more'\n\n\ndef even():\n    return 1\n",
	})
	require.NoError(t, err)

	prCount, err := store.Count(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchInt("pr_number", 77)},
	})
	require.NoError(t, err)
	require.Greater(t, prCount, uint64(0))

	require.NoError(t, ix.CleanupPRFiles(ctx, "ws", "proj", 77))
	total, err := store.Count(ctx, alias, vectorstore.Filter{})
	require.NoError(t, err)
	require.Equal(t, base, total, "pr points must be fully removed")
}

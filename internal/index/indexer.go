// Package index manages per-project vector collections: atomic alias-swap
// reindexing, branch-scoped updates and deletes, budget enforcement, and
// PR-scoped hybrid-mode points.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/domain"
	"code-review-orchestrator/internal/embedding"
	"code-review-orchestrator/internal/metrics"
	"code-review-orchestrator/internal/splitter"
	isync "code-review-orchestrator/internal/sync"
	"code-review-orchestrator/internal/types"
	"code-review-orchestrator/internal/vectorstore"
)

// gcHintInterval triggers a garbage-collection hint every N file batches
// during indexing, keeping memory bounded on large repositories.
const gcHintInterval = 5

// chunkSampleFiles is how many files the budget estimator splits before
// extrapolating the total chunk count.
const chunkSampleFiles = 100

// Stats summarises one indexing run.
type Stats struct {
	Collection string
	Files      int
	Chunks     int
	Migrated   int
	Duration   time.Duration
}

// Indexer owns collection lifecycle for all projects. Write operations on
// one project are serialised through a keyed lock.
type Indexer struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	split    *splitter.Splitter
	cfg      config.IndexingConfig
	prefix   string
	locks    *isync.KeyLock
	now      func() time.Time // injectable for tests
}

// New creates an Indexer.
func New(store vectorstore.Store, embedder embedding.Embedder, cfg config.IndexingConfig, collectionPrefix string) *Indexer {
	return &Indexer{
		store:    store,
		embedder: embedder,
		split:    splitter.New(cfg.MaxChunkSize, cfg.MinChunkSize, cfg.ChunkOverlap),
		cfg:      cfg,
		prefix:   collectionPrefix,
		locks:    isync.NewKeyLock(),
		now:      time.Now,
	}
}

// Alias returns the stable alias for a project.
func (ix *Indexer) Alias(workspace, project string) string {
	return AliasName(ix.prefix, workspace, project)
}

// IndexRepository rebuilds the index for one branch of a repository rooted
// at repoPath. The alias swap is the commit point: any failure before it
// leaves the live index untouched, and points belonging to other branches
// are carried over from the previous generation.
func (ix *Indexer) IndexRepository(ctx context.Context, repoPath, workspace, project, branch, commit string) (*Stats, error) {
	alias := ix.Alias(workspace, project)
	ix.locks.Lock(alias)
	defer ix.locks.Unlock(alias)

	start := ix.now()
	files, err := walkRepository(repoPath, ix.cfg)
	if err != nil {
		metrics.IndexOperations.WithLabelValues("index", "error").Inc()
		return nil, fmt.Errorf("walk repository: %w", err)
	}
	if err := ix.checkBudget(ctx, files); err != nil {
		metrics.IndexOperations.WithLabelValues("index", "rejected").Inc()
		return nil, err
	}

	oldCollection, err := ix.store.ResolveAlias(ctx, alias)
	if err != nil && !errors.Is(err, vectorstore.ErrAliasNotFound) {
		return nil, fmt.Errorf("resolve alias %s: %w", alias, err)
	}

	// Bump the suffix while a generation with this timestamp exists; two
	// reindexes can land in the same millisecond.
	millis := start.UnixMilli()
	newCollection := versionedName(alias, millis)
	for {
		exists, exErr := ix.store.CollectionExists(ctx, newCollection)
		if exErr != nil || !exists {
			break
		}
		millis++
		newCollection = versionedName(alias, millis)
	}

	dim := uint64(ix.embedder.Dimension())
	if err := ix.store.CreateCollection(ctx, newCollection, dim); err != nil {
		metrics.IndexOperations.WithLabelValues("index", "error").Inc()
		return nil, err
	}

	stats := &Stats{Collection: newCollection}
	if err := ix.populate(ctx, stats, files, newCollection, oldCollection, workspace, project, branch, commit); err != nil {
		// Failure before the swap: remove the half-built generation, the
		// live index stays as it was.
		if delErr := ix.store.DeleteCollection(context.WithoutCancel(ctx), newCollection); delErr != nil {
			slog.Error("cleanup of failed index generation failed", "collection", newCollection, "error", delErr)
		}
		metrics.IndexOperations.WithLabelValues("index", "error").Inc()
		return nil, err
	}

	if err := ix.swapAlias(ctx, alias, newCollection); err != nil {
		if delErr := ix.store.DeleteCollection(context.WithoutCancel(ctx), newCollection); delErr != nil {
			slog.Error("cleanup of failed index generation failed", "collection", newCollection, "error", delErr)
		}
		metrics.IndexOperations.WithLabelValues("index", "error").Inc()
		return nil, err
	}

	// The swap succeeded: previous generation and any orphans from crashed
	// runs can go. Failures here are logged, never surfaced.
	ix.cleanupOldGenerations(ctx, alias, newCollection, oldCollection)

	stats.Duration = ix.now().Sub(start)
	metrics.IndexOperations.WithLabelValues("index", "success").Inc()
	slog.Info("repository indexed",
		"workspace", workspace, "project", project, "branch", branch,
		"files", stats.Files, "chunks", stats.Chunks, "migrated", stats.Migrated,
		"collection", newCollection, "duration", stats.Duration)
	return stats, nil
}

// populate migrates other-branch points and writes fresh chunks for branch.
func (ix *Indexer) populate(ctx context.Context, stats *Stats, files []RepoFile, newCollection, oldCollection, workspace, project, branch, commit string) error {
	if oldCollection != "" {
		migrated, err := ix.migrateOtherBranches(ctx, oldCollection, newCollection, branch)
		if err != nil {
			return err
		}
		stats.Migrated = migrated
	}

	batchSize := ix.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	indexedAt := ix.now().UTC().Format(time.RFC3339)
	batchNum := 0
	for start := 0; start < len(files); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(files))

		var points []vectorstore.Point
		for _, file := range files[start:end] {
			content, err := os.ReadFile(file.AbsPath)
			if err != nil {
				slog.Warn("skipping unreadable file", "path", file.Path, "error", err)
				continue
			}
			chunks := ix.split.Split(ctx, file.Path, string(content))
			points = append(points, ix.toPoints(chunks, workspace, project, branch, commit, indexedAt, 0)...)
			stats.Files++
		}

		if err := ix.embedAndUpsert(ctx, newCollection, points); err != nil {
			return err
		}
		stats.Chunks += len(points)

		batchNum++
		if batchNum%gcHintInterval == 0 {
			runtime.GC()
		}
	}
	return nil
}

// toPoints stamps index metadata onto chunks and derives stable point ids.
func (ix *Indexer) toPoints(chunks []domain.Chunk, workspace, project, branch, commit, indexedAt string, prNumber int) []vectorstore.Point {
	points := make([]vectorstore.Point, 0, len(chunks))
	for _, c := range chunks {
		payload := c.Payload
		payload.Workspace = workspace
		payload.Project = project
		payload.Branch = branch
		payload.Commit = commit
		payload.IndexedAt = indexedAt
		payload.PRNumber = prNumber
		points = append(points, vectorstore.Point{
			ID:      domain.PointID(workspace, project, branch, payload.Path, c.Index),
			Payload: payload,
		})
	}
	return points
}

// embedAndUpsert embeds point contents and writes them in sub-batches.
func (ix *Indexer) embedAndUpsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	texts := make([]string, len(points))
	for i, p := range points {
		texts[i] = p.Payload.Content
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(points) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(points))
	}
	for i := range points {
		points[i].Vector = vectors[i]
	}

	const upsertBatch = 50
	for start := 0; start < len(points); start += upsertBatch {
		end := min(start+upsertBatch, len(points))
		if err := ix.store.Upsert(ctx, collection, points[start:end]); err != nil {
			return err
		}
		metrics.ChunksIndexed.Add(float64(end - start))
	}
	return nil
}

// migrateOtherBranches streams every point whose branch differs from the
// branch being reindexed from the previous generation into the new one.
// When vector dimensions differ the migration is skipped; those branches
// will be re-embedded on their next index.
func (ix *Indexer) migrateOtherBranches(ctx context.Context, oldCollection, newCollection, branch string) (int, error) {
	oldInfo, err := ix.store.CollectionInfo(ctx, oldCollection)
	if err != nil {
		slog.Warn("cannot inspect previous generation, skipping branch migration", "collection", oldCollection, "error", err)
		return 0, nil
	}
	if oldInfo.VectorSize != uint64(ix.embedder.Dimension()) {
		slog.Warn("vector dimension changed, other branches will re-embed on next index",
			"old", oldInfo.VectorSize, "new", ix.embedder.Dimension())
		return 0, nil
	}

	filter := vectorstore.Filter{
		MustNot: []vectorstore.Condition{vectorstore.MatchField("branch", branch)},
	}
	migrated := 0
	offset := ""
	for {
		if err := ctx.Err(); err != nil {
			return migrated, err
		}
		page, next, err := ix.store.Scroll(ctx, oldCollection, filter, 256, true, offset)
		if err != nil {
			return migrated, fmt.Errorf("scroll previous generation: %w", err)
		}
		if len(page) > 0 {
			if err := ix.store.Upsert(ctx, newCollection, page); err != nil {
				return migrated, fmt.Errorf("migrate points: %w", err)
			}
			migrated += len(page)
		}
		if next == "" {
			return migrated, nil
		}
		offset = next
	}
}

// swapAlias commits the new generation. When a pre-migration direct
// collection occupies the alias name itself, it is deleted first and the
// swap retried once.
func (ix *Indexer) swapAlias(ctx context.Context, alias, newCollection string) error {
	err := ix.store.SwapAlias(ctx, alias, newCollection)
	if err == nil {
		return nil
	}

	if exists, exErr := ix.store.CollectionExists(ctx, alias); exErr == nil && exists {
		if resolved, rErr := ix.store.ResolveAlias(ctx, alias); errors.Is(rErr, vectorstore.ErrAliasNotFound) && resolved == "" {
			slog.Info("replacing direct collection with alias", "name", alias)
			if delErr := ix.store.DeleteCollection(ctx, alias); delErr != nil {
				return fmt.Errorf("delete direct collection %s: %w", alias, delErr)
			}
			if err := ix.store.SwapAlias(ctx, alias, newCollection); err != nil {
				return fmt.Errorf("swap alias after direct-collection removal: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("swap alias %s: %w", alias, err)
}

// cleanupOldGenerations removes the superseded generation and any orphaned
// versioned collections left behind by crashed indexers.
func (ix *Indexer) cleanupOldGenerations(ctx context.Context, alias, current, previous string) {
	if previous != "" && previous != current {
		if err := ix.store.DeleteCollection(ctx, previous); err != nil {
			slog.Warn("delete previous generation failed", "collection", previous, "error", err)
		}
	}

	names, err := ix.store.ListCollections(ctx)
	if err != nil {
		slog.Warn("list collections for orphan cleanup failed", "error", err)
		return
	}
	for _, name := range names {
		if name == current || name == previous || !isVersionOf(name, alias) {
			continue
		}
		slog.Info("removing orphaned index generation", "collection", name)
		if err := ix.store.DeleteCollection(ctx, name); err != nil {
			slog.Warn("delete orphaned generation failed", "collection", name, "error", err)
		}
	}
}

// checkBudget rejects repositories exceeding the configured caps. The chunk
// estimate samples up to chunkSampleFiles files and extrapolates.
func (ix *Indexer) checkBudget(ctx context.Context, files []RepoFile) error {
	if ix.cfg.MaxFiles > 0 && len(files) > ix.cfg.MaxFiles {
		return &types.BudgetExceededError{Kind: "files", Count: len(files), Limit: ix.cfg.MaxFiles}
	}
	if ix.cfg.MaxChunks <= 0 || len(files) == 0 {
		return nil
	}

	sample := min(len(files), chunkSampleFiles)

	sampleChunks := 0
	for _, file := range files[:sample] {
		content, err := os.ReadFile(file.AbsPath)
		if err != nil {
			continue
		}
		sampleChunks += len(ix.split.Split(ctx, file.Path, string(content)))
	}
	estimated := sampleChunks * len(files) / sample
	if estimated > ix.cfg.MaxChunks {
		return &types.BudgetExceededError{Kind: "chunks", Count: estimated, Limit: ix.cfg.MaxChunks}
	}
	return nil
}

// UpdateFiles replaces the indexed chunks for the given files on one
// branch: matching points are deleted, then fresh chunks inserted.
func (ix *Indexer) UpdateFiles(ctx context.Context, workspace, project, branch, commit string, files map[string]string) error {
	alias := ix.Alias(workspace, project)
	ix.locks.Lock(alias)
	defer ix.locks.Unlock(alias)

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	if err := ix.deleteFilePoints(ctx, alias, branch, paths); err != nil {
		metrics.IndexOperations.WithLabelValues("update", "error").Inc()
		return err
	}

	indexedAt := ix.now().UTC().Format(time.RFC3339)
	var points []vectorstore.Point
	for path, content := range files {
		chunks := ix.split.Split(ctx, path, content)
		points = append(points, ix.toPoints(chunks, workspace, project, branch, commit, indexedAt, 0)...)
	}
	if err := ix.embedAndUpsert(ctx, alias, points); err != nil {
		metrics.IndexOperations.WithLabelValues("update", "error").Inc()
		return err
	}
	metrics.IndexOperations.WithLabelValues("update", "success").Inc()
	return nil
}

// DeleteFiles removes all points for the given paths on one branch.
func (ix *Indexer) DeleteFiles(ctx context.Context, workspace, project, branch string, paths []string) error {
	alias := ix.Alias(workspace, project)
	ix.locks.Lock(alias)
	defer ix.locks.Unlock(alias)

	if err := ix.deleteFilePoints(ctx, alias, branch, paths); err != nil {
		metrics.IndexOperations.WithLabelValues("delete", "error").Inc()
		return err
	}
	metrics.IndexOperations.WithLabelValues("delete", "success").Inc()
	return nil
}

func (ix *Indexer) deleteFilePoints(ctx context.Context, collection, branch string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return ix.store.DeleteByFilter(ctx, collection, vectorstore.Filter{
		Must: []vectorstore.Condition{
			vectorstore.MatchAny("path", paths...),
			vectorstore.MatchField("branch", branch),
		},
	})
}

// DeleteBranch removes every point tagged with branch, leaving the
// collection and alias untouched.
func (ix *Indexer) DeleteBranch(ctx context.Context, workspace, project, branch string) error {
	alias := ix.Alias(workspace, project)
	ix.locks.Lock(alias)
	defer ix.locks.Unlock(alias)

	err := ix.store.DeleteByFilter(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchField("branch", branch)},
	})
	if err != nil {
		metrics.IndexOperations.WithLabelValues("delete_branch", "error").Inc()
		return err
	}
	metrics.IndexOperations.WithLabelValues("delete_branch", "success").Inc()
	return nil
}

// IndexPRFiles writes hybrid-mode points tagged with a PR number into the
// live collection so retrieval sees fresh PR content during the review.
func (ix *Indexer) IndexPRFiles(ctx context.Context, workspace, project, branch, commit string, prNumber int, files map[string]string) error {
	if prNumber <= 0 {
		return fmt.Errorf("pr number must be positive")
	}
	alias := ix.Alias(workspace, project)
	ix.locks.Lock(alias)
	defer ix.locks.Unlock(alias)

	indexedAt := ix.now().UTC().Format(time.RFC3339)
	var points []vectorstore.Point
	for path, content := range files {
		chunks := ix.split.Split(ctx, path, content)
		pts := ix.toPoints(chunks, workspace, project, branch, commit, indexedAt, prNumber)
		// PR points must not collide with the branch's own points.
		for i := range pts {
			pts[i].ID = domain.PointID(workspace, project, fmt.Sprintf("%s#pr%d", branch, prNumber), pts[i].Payload.Path, chunks[i].Index)
		}
		points = append(points, pts...)
	}
	if err := ix.embedAndUpsert(ctx, alias, points); err != nil {
		metrics.IndexOperations.WithLabelValues("pr_index", "error").Inc()
		return err
	}
	metrics.IndexOperations.WithLabelValues("pr_index", "success").Inc()
	return nil
}

// CleanupPRFiles deletes every point tagged with the PR number. It runs
// regardless of review outcome.
func (ix *Indexer) CleanupPRFiles(ctx context.Context, workspace, project string, prNumber int) error {
	alias := ix.Alias(workspace, project)
	ix.locks.Lock(alias)
	defer ix.locks.Unlock(alias)

	err := ix.store.DeleteByFilter(ctx, alias, vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchInt("pr_number", int64(prNumber))},
	})
	if err != nil {
		metrics.IndexOperations.WithLabelValues("pr_index", "cleanup_error").Inc()
		return err
	}
	metrics.IndexOperations.WithLabelValues("pr_index", "cleanup_success").Inc()
	return nil
}

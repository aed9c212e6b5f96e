// Package retriever answers "what existing code matters for this PR": it
// decomposes the request into weighted sub-queries, fetches from the
// project collection across target and base branches, and merges with
// priority reranking and per-path deduplication.
package retriever

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/domain"
	"code-review-orchestrator/internal/embedding"
	"code-review-orchestrator/internal/index"
	"code-review-orchestrator/internal/metrics"
	"code-review-orchestrator/internal/vectorstore"
)

const (
	intentWeight  = 1.0
	clusterWeight = 0.8
	snippetWeight = 1.2

	maxClusterQueries = 5
	maxSnippetQueries = 3

	// minScoreFloorKeep keeps the best few results when the threshold would
	// otherwise empty the context entirely.
	minScoreFloorKeep = 5
)

// Params describe one context fetch.
type Params struct {
	Workspace     string
	Project       string
	Branch        string
	BaseBranch    string // auto-detected when empty
	ChangedFiles  []string
	DiffSnippets  []string
	PRTitle       string
	PRDescription string
	DeletedFiles  []string
	TopK          int
	MinScore      float64
}

// Context is retrieved knowledge for a review batch.
type Context struct {
	Chunks       []domain.ScoredChunk
	RelatedFiles []string
}

// Retriever fetches PR context from the vector store.
type Retriever struct {
	store             vectorstore.Store
	embedder          embedding.Embedder
	prefix            string
	topK              int
	minScore          float64
	priorityReranking bool

	baseDetect singleflight.Group
}

// New creates a Retriever with defaults from the review configuration.
func New(store vectorstore.Store, embedder embedding.Embedder, collectionPrefix string, cfg config.ReviewConfig) *Retriever {
	return &Retriever{
		store:             store,
		embedder:          embedder,
		prefix:            collectionPrefix,
		topK:              cfg.TopK,
		minScore:          cfg.MinScore,
		priorityReranking: cfg.PriorityReranking,
	}
}

type subQuery struct {
	text   string
	weight float64
}

// GetPRContext runs the multi-query retrieval for a PR or batch.
func (r *Retriever) GetPRContext(ctx context.Context, p Params) (*Context, error) {
	alias := index.AliasName(r.prefix, p.Workspace, p.Project)

	exists, err := r.store.CollectionExists(ctx, alias)
	if err != nil {
		metrics.RetrievalQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		metrics.RetrievalQueries.WithLabelValues("no_index").Inc()
		return &Context{}, nil
	}

	baseBranch := p.BaseBranch
	if baseBranch == "" {
		baseBranch = r.detectBaseBranch(ctx, alias, p.Workspace, p.Project, p.Branch)
	}

	queries := r.decompose(p)
	if len(queries) == 0 {
		return &Context{}, nil
	}

	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = q.text
	}
	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		metrics.RetrievalQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embed queries: %w", err)
	}

	branches := []string{p.Branch}
	if baseBranch != "" && baseBranch != p.Branch {
		branches = append(branches, baseBranch)
	}
	filter := vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.MatchAny("branch", branches...)},
	}

	topK := p.TopK
	if topK <= 0 {
		topK = r.topK
	}
	minScore := p.MinScore
	if minScore <= 0 {
		minScore = r.minScore
	}

	var hits []domain.ScoredChunk
	for i, q := range queries {
		found, err := r.store.Query(ctx, alias, vectors[i], filter, topK*2)
		if err != nil {
			slog.Warn("sub-query failed", "error", err)
			continue
		}
		for _, h := range found {
			h.Score *= q.weight
			hits = append(hits, h)
		}
	}

	merged := r.merge(hits, p.Branch, baseBranch, p.DeletedFiles, topK, minScore)

	related := make([]string, 0, len(merged))
	seen := make(map[string]bool)
	for _, c := range merged {
		if !seen[c.Payload.Path] {
			seen[c.Payload.Path] = true
			related = append(related, c.Payload.Path)
		}
	}

	metrics.RetrievalQueries.WithLabelValues("success").Inc()
	return &Context{Chunks: merged, RelatedFiles: related}, nil
}

// decompose builds the weighted sub-queries: one intent query from the PR
// metadata, up to five directory-cluster queries, and up to three diff
// snippet queries.
func (r *Retriever) decompose(p Params) []subQuery {
	var queries []subQuery

	intent := strings.TrimSpace(p.PRTitle)
	desc := strings.TrimSpace(p.PRDescription)
	if len(desc) > 500 {
		desc = desc[:500]
	}
	if desc != "" {
		intent = strings.TrimSpace(intent + "\n" + desc)
	}
	if intent != "" {
		queries = append(queries, subQuery{
			text:   "Find code related to this change: " + intent,
			weight: intentWeight,
		})
	}

	for _, cluster := range topDirectories(p.ChangedFiles, maxClusterQueries) {
		queries = append(queries, subQuery{
			text:   fmt.Sprintf("logic in %s related to %s", cluster.dir, strings.Join(cluster.files, ", ")),
			weight: clusterWeight,
		})
	}

	snippets := p.DiffSnippets
	if len(snippets) > maxSnippetQueries {
		snippets = snippets[:maxSnippetQueries]
	}
	for _, s := range snippets {
		queries = append(queries, subQuery{
			text:   "Find definitions and dependencies used by this code:\n" + s,
			weight: snippetWeight,
		})
	}

	return queries
}

type dirCluster struct {
	dir   string
	files []string
	count int
}

// topDirectories groups changed files by directory and returns the busiest
// limit directories.
func topDirectories(files []string, limit int) []dirCluster {
	byDir := make(map[string][]string)
	for _, f := range files {
		dir := path.Dir(f)
		byDir[dir] = append(byDir[dir], path.Base(f))
	}

	clusters := make([]dirCluster, 0, len(byDir))
	for dir, names := range byDir {
		clusters = append(clusters, dirCluster{dir: dir, files: names, count: len(names)})
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].count != clusters[j].count {
			return clusters[i].count > clusters[j].count
		}
		return clusters[i].dir < clusters[j].dir
	})
	if len(clusters) > limit {
		clusters = clusters[:limit]
	}
	return clusters
}

// detectBaseBranch probes the default candidates and returns the first with
// indexed points. Detection is deduplicated across concurrent batches.
func (r *Retriever) detectBaseBranch(ctx context.Context, alias, workspace, project, target string) string {
	key := workspace + ":" + project
	result, _, _ := r.baseDetect.Do(key, func() (any, error) {
		for _, candidate := range config.DefaultBaseBranches {
			if candidate == target {
				continue
			}
			count, err := r.store.Count(ctx, alias, vectorstore.Filter{
				Must: []vectorstore.Condition{vectorstore.MatchField("branch", candidate)},
			})
			if err == nil && count > 0 {
				return candidate, nil
			}
		}
		return "", nil
	})
	base, _ := result.(string)
	return base
}

// merge applies the result-merging pipeline: dedup with branch
// preference, deleted-file exclusion, priority reranking, threshold with
// floor, and final truncation.
func (r *Retriever) merge(hits []domain.ScoredChunk, targetBranch, baseBranch string, deletedFiles []string, topK int, minScore float64) []domain.ScoredChunk {
	deleted := make(map[string]bool, len(deletedFiles))
	for _, f := range deletedFiles {
		deleted[f] = true
	}

	// Dedupe by (path, hash of leading content): target branch beats base,
	// then the higher score wins within the same branch.
	best := make(map[string]domain.ScoredChunk)
	rank := func(branch string) int {
		switch branch {
		case targetBranch:
			return 2
		case baseBranch:
			return 1
		}
		return 0
	}
	for _, h := range hits {
		if deleted[h.Payload.Path] {
			continue
		}
		key := h.Payload.Path + ":" + contentHash(h.Payload.Content)
		prev, ok := best[key]
		if !ok {
			best[key] = h
			continue
		}
		switch {
		case rank(h.Payload.Branch) > rank(prev.Payload.Branch):
			best[key] = h
		case rank(h.Payload.Branch) == rank(prev.Payload.Branch) && h.Score > prev.Score:
			best[key] = h
		}
	}

	// Same-path duplicates across branches: keep the preferred branch only.
	byPathLine := make(map[string]domain.ScoredChunk)
	for _, h := range best {
		key := fmt.Sprintf("%s:%d", h.Payload.Path, h.Payload.StartLine)
		prev, ok := byPathLine[key]
		if !ok || rank(h.Payload.Branch) > rank(prev.Payload.Branch) ||
			(rank(h.Payload.Branch) == rank(prev.Payload.Branch) && h.Score > prev.Score) {
			byPathLine[key] = h
		}
	}

	deduped := make([]domain.ScoredChunk, 0, len(byPathLine))
	for _, h := range byPathLine {
		if r.priorityReranking {
			h.Score = rerank(h)
		} else if h.Score > 1.0 {
			h.Score = 1.0
		}
		deduped = append(deduped, h)
	}
	sort.Slice(deduped, func(i, j int) bool { return deduped[i].Score > deduped[j].Score })

	filtered := deduped[:0:0]
	for _, h := range deduped {
		if h.Score >= minScore {
			filtered = append(filtered, h)
		}
	}
	// An empty context helps nobody: keep the best few below threshold.
	if len(filtered) == 0 && len(deduped) > 0 {
		keep := min(minScoreFloorKeep, len(deduped))
		filtered = deduped[:keep]
	}

	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered
}

func contentHash(content string) string {
	if len(content) > 200 {
		content = content[:200]
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:8])
}

// Package review runs the multi-stage pipeline: plan, per-batch file
// review, cross-file synthesis, and the executive report, with
// reconciliation of prior findings for incremental reviews.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"code-review-orchestrator/internal/batch"
	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/diff"
	"code-review-orchestrator/internal/domain"
	"code-review-orchestrator/internal/llm"
	"code-review-orchestrator/internal/metrics"
	"code-review-orchestrator/internal/prompts"
	"code-review-orchestrator/internal/retriever"
	"code-review-orchestrator/internal/storage"
	isync "code-review-orchestrator/internal/sync"
	"code-review-orchestrator/internal/types"
)

// ContextFetcher is the retriever surface the pipeline depends on.
type ContextFetcher interface {
	GetPRContext(ctx context.Context, p retriever.Params) (*retriever.Context, error)
}

// ReferenceLookup is the optional deterministic-lookup surface of the
// retriever: chunks referencing the given files are merged into the batch
// context with a synthetic score.
type ReferenceLookup interface {
	LookupReferences(ctx context.Context, workspace, project string, branches, files []string, limitPerFile int) ([]domain.ScoredChunk, error)
}

// PRIndexer writes and removes PR-scoped hybrid-mode points.
type PRIndexer interface {
	IndexPRFiles(ctx context.Context, workspace, project, branch, commit string, prNumber int, files map[string]string) error
	CleanupPRFiles(ctx context.Context, workspace, project string, prNumber int) error
}

// Orchestrator executes reviews. One instance serves all requests; each
// request is a single logical task.
type Orchestrator struct {
	cfg     config.ReviewConfig
	client  llm.Client
	fetcher ContextFetcher
	prompts *prompts.Loader

	audit     storage.Repository // optional
	prIndexer PRIndexer          // optional, hybrid mode

	// Rapid re-reviews of the same PR coalesce their point cleanup so a
	// new review's inserts never interleave with the old review's deletes.
	cleanupDebounce *isync.Debouncer
}

// NewOrchestrator wires the pipeline dependencies.
func NewOrchestrator(cfg config.ReviewConfig, client llm.Client, fetcher ContextFetcher, loader *prompts.Loader) *Orchestrator {
	return &Orchestrator{
		cfg:             cfg,
		client:          client,
		fetcher:         fetcher,
		prompts:         loader,
		cleanupDebounce: isync.NewDebouncer(2 * time.Second),
	}
}

// SetAudit enables write-only persistence of finished reviews.
func (o *Orchestrator) SetAudit(repo storage.Repository) {
	o.audit = repo
}

// SetPRIndexer enables hybrid-mode PR indexing.
func (o *Orchestrator) SetPRIndexer(ix PRIndexer) {
	o.prIndexer = ix
}

// Run executes one review request. Progress events are emitted through cb;
// the final result is both returned and delivered as a final event.
func (o *Orchestrator) Run(ctx context.Context, req *domain.ReviewRequest, cb domain.EventCallback) (*domain.ReviewResponse, error) {
	start := time.Now()
	if errs := req.Validate(); len(errs) > 0 {
		return nil, &types.ValidationError{Fields: errs}
	}
	metrics.ReviewsTotal.WithLabelValues("started").Inc()
	cb.Status("started", fmt.Sprintf("Reviewing PR %s (%d files)", req.PRID, len(req.ChangedFiles)))

	resp, err := o.run(ctx, req, cb)
	status := "success"
	switch {
	case err != nil && ctx.Err() != nil:
		status = "cancelled"
	case err != nil:
		status = "failed"
	}
	metrics.ReviewsTotal.WithLabelValues(status).Inc()

	if err != nil {
		cb.Error(err.Error())
		o.saveAudit(req, nil, time.Since(start), status)
		return nil, err
	}

	o.saveAudit(req, resp, time.Since(start), status)
	cb.Final(resp)
	return resp, nil
}

func (o *Orchestrator) run(ctx context.Context, req *domain.ReviewRequest, cb domain.EventCallback) (*domain.ReviewResponse, error) {
	processed := diff.Process(req.Diff)

	// Empty PR: nothing to plan, nothing to review.
	if len(req.ChangedFiles) == 0 && len(processed.Files) == 0 {
		cb.Progress(100, "No changes to review")
		return &domain.ReviewResponse{
			Comment: "No changes to review in this pull request.\n\nRecommendation: PASS",
			Issues:  []domain.Issue{},
		}, nil
	}

	// The delta diff drives incremental reviews; the full diff everything else.
	activeDiff := req.Diff
	activeProcessed := processed
	if req.IsIncremental() && req.DeltaDiff != "" {
		activeDiff = req.DeltaDiff
		activeProcessed = diff.Process(req.DeltaDiff)
	}
	lineIdx := diff.NewLineIndex(activeDiff)

	if cleanup := o.indexPRContent(ctx, req, processed); cleanup != nil {
		defer cleanup()
	}

	// Stage 0: planning.
	plan, err := o.runPlanStage(ctx, req)
	if err != nil {
		return nil, err
	}
	cb.Progress(15, fmt.Sprintf("Plan ready: %d groups, %d skipped", len(plan.FileGroups), len(plan.SkippedFiles)))

	// Global context: fetched once, reused for batching metadata and as the
	// fallback when a per-batch fetch fails.
	globalCtx := o.fetchGlobalContext(ctx, req, processed)

	batches := batch.Build(plan, req.Enrichment, relatedFromContext(globalCtx, req.ChangedFiles), o.cfg.MaxFilesPerBatch)

	// Stage 1: per-batch file review in waves.
	issues, err := o.runFileStage(ctx, req, activeProcessed, plan, batches, globalCtx, cb)
	if err != nil {
		return nil, err
	}

	// Stage 1.5: reconcile prior findings.
	if len(req.PriorIssues) > 0 {
		issues = reconcile(req.PriorIssues, issues, lineIdx)
		cb.Progress(75, fmt.Sprintf("Reconciled %d prior issues", len(req.PriorIssues)))
	}

	// Stage 2: cross-file synthesis.
	crossFile, err := o.runCrossFileStage(ctx, req, processed, plan, issues)
	if err != nil {
		return nil, err
	}
	cb.Progress(85, fmt.Sprintf("Cross-file analysis done: %s", crossFile.Recommendation))

	// Stage 3: executive report.
	comment, err := o.runReportStage(ctx, req, processed, plan, issues, crossFile)
	if err != nil {
		return nil, err
	}
	cb.Progress(95, "Report generated")

	return &domain.ReviewResponse{Comment: comment, Issues: issues}, nil
}

// indexPRContent writes hybrid-mode points for changed files whose
// post-change content is available, returning the cleanup that removes them
// after the review regardless of outcome.
func (o *Orchestrator) indexPRContent(ctx context.Context, req *domain.ReviewRequest, processed *domain.ProcessedDiff) func() {
	if o.prIndexer == nil || !o.cfg.PRIndexing {
		return nil
	}
	prNumber := prNumberOf(req)
	if prNumber <= 0 {
		return nil
	}

	files := make(map[string]string)
	for _, f := range processed.Files {
		if f.FullContent != "" && f.ChangeType != domain.ChangeDeleted {
			files[f.Path] = f.FullContent
		}
	}
	if len(files) == 0 {
		return nil
	}

	if err := o.prIndexer.IndexPRFiles(ctx, req.Workspace, req.Project, req.Branch, req.Commit, prNumber, files); err != nil {
		slog.Warn("pr-scoped indexing failed, continuing without", "error", err)
		return nil
	}
	return func() {
		key := fmt.Sprintf("%s:%s:%d", req.Workspace, req.Project, prNumber)
		o.cleanupDebounce.Add(key, func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := o.prIndexer.CleanupPRFiles(cleanupCtx, req.Workspace, req.Project, prNumber); err != nil {
				slog.Error("pr-scoped cleanup failed", "pr", prNumber, "error", err)
			}
		})
	}
}

func prNumberOf(req *domain.ReviewRequest) int {
	var n int
	if _, err := fmt.Sscanf(req.PRID, "%d", &n); err != nil {
		return 0
	}
	return n
}

// fetchGlobalContext retrieves PR-level context; failures degrade to an
// empty context rather than failing the review.
func (o *Orchestrator) fetchGlobalContext(ctx context.Context, req *domain.ReviewRequest, processed *domain.ProcessedDiff) *retriever.Context {
	var snippets []string
	for _, f := range processed.Files {
		snippets = append(snippets, diff.Snippets(f.Diff)...)
	}
	if len(snippets) > 3 {
		snippets = snippets[:3]
	}

	got, err := o.fetcher.GetPRContext(ctx, retriever.Params{
		Workspace:     req.Workspace,
		Project:       req.Project,
		Branch:        req.Branch,
		BaseBranch:    req.TargetBranch,
		ChangedFiles:  req.ChangedFiles,
		DiffSnippets:  snippets,
		PRTitle:       req.PRTitle,
		PRDescription: req.PRDescription,
		DeletedFiles:  req.DeletedFiles,
		TopK:          o.cfg.TopK,
		MinScore:      o.cfg.MinScore,
	})
	if err != nil {
		slog.Warn("global context fetch failed", "error", err)
		return &retriever.Context{}
	}
	return got
}

// relatedFromContext derives file relationships for the batcher from
// retrieved chunk metadata: changed files whose stems appear in another
// changed file's imports are related.
func relatedFromContext(ctx *retriever.Context, changedFiles []string) map[string][]string {
	if ctx == nil || len(ctx.Chunks) == 0 {
		return nil
	}
	importsByPath := make(map[string][]string)
	for _, c := range ctx.Chunks {
		if len(c.Payload.Imports) > 0 {
			importsByPath[c.Payload.Path] = append(importsByPath[c.Payload.Path], c.Payload.Imports...)
		}
	}

	related := make(map[string][]string)
	for _, a := range changedFiles {
		for _, b := range changedFiles {
			if a == b {
				continue
			}
			stem := stemOf(b)
			for _, imp := range importsByPath[a] {
				if imp == stem || imp == b || baseName(imp) == stem || baseName(imp) == baseName(b) {
					related[a] = append(related[a], b)
					break
				}
			}
		}
	}
	if len(related) == 0 {
		return nil
	}
	return related
}

func stemOf(path string) string {
	base := baseName(path)
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}

func (o *Orchestrator) saveAudit(req *domain.ReviewRequest, resp *domain.ReviewResponse, duration time.Duration, status string) {
	if o.audit == nil {
		return
	}
	record := storage.NewRecord(req, resp, duration, status)
	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.audit.SaveReview(saveCtx, record); err != nil {
			slog.Warn("audit save failed", "error", err)
		}
	}()
}

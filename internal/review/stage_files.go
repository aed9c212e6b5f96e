package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"code-review-orchestrator/internal/batch"
	"code-review-orchestrator/internal/diff"
	"code-review-orchestrator/internal/domain"
	"code-review-orchestrator/internal/metrics"
	"code-review-orchestrator/internal/parser"
	"code-review-orchestrator/internal/retriever"
	"code-review-orchestrator/internal/types"
)

// runFileStage executes Stage 1: batches are processed in waves of at most
// max_parallel_stage_1 concurrent tasks. Batch failures yield zero issues
// and never abort sibling batches; the final issue list concatenates batch
// results in wave-start order regardless of completion order.
func (o *Orchestrator) runFileStage(ctx context.Context, req *domain.ReviewRequest, processed *domain.ProcessedDiff, plan *domain.ReviewPlan, batches []batch.Batch, globalCtx *retriever.Context, cb domain.EventCallback) ([]domain.Issue, error) {
	start := time.Now()
	if len(batches) == 0 {
		cb.Progress(70, "No files to review")
		return []domain.Issue{}, nil
	}

	waveSize := o.cfg.MaxParallelStage1
	if waveSize <= 0 {
		waveSize = 5
	}

	results := make([][]domain.Issue, len(batches))
	waves := (len(batches) + waveSize - 1) / waveSize

	for wave := 0; wave < waves; wave++ {
		waveStart := wave * waveSize
		waveEnd := min(waveStart+waveSize, len(batches))

		g, waveCtx := errgroup.WithContext(ctx)
		for i := waveStart; i < waveEnd; i++ {
			g.Go(func() error {
				issues, err := o.reviewBatch(waveCtx, req, processed, batches[i], globalCtx)
				if err != nil {
					if waveCtx.Err() != nil {
						return waveCtx.Err()
					}
					slog.Error("batch review failed, recording zero issues",
						"group", batches[i].GroupID, "files", batches[i].Paths(), "error", err)
					results[i] = nil
					return nil
				}
				results[i] = issues
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			metrics.StageDuration.WithLabelValues("files", "cancelled").Observe(time.Since(start).Seconds())
			return nil, err
		}

		percent := 20 + 50*(wave+1)/waves
		cb.Progress(percent, fmt.Sprintf("Reviewed wave %d/%d", wave+1, waves))
	}

	var issues []domain.Issue
	for _, r := range results {
		issues = append(issues, r...)
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	metrics.StageDuration.WithLabelValues("files", "success").Observe(time.Since(start).Seconds())
	return issues, nil
}

// reviewBatch reviews one batch: per-file diff extraction, batch context
// retrieval, prior-issue injection, then one structured LLM call.
func (o *Orchestrator) reviewBatch(ctx context.Context, req *domain.ReviewRequest, processed *domain.ProcessedDiff, b batch.Batch, globalCtx *retriever.Context) ([]domain.Issue, error) {
	var fileDiffs []string
	var diffsBlock strings.Builder
	for _, f := range b.Files {
		df := processed.File(f.Path)
		if df == nil {
			fmt.Fprintf(&diffsBlock, "### %s\n(no diff in this revision)\n\n", f.Path)
			continue
		}
		fileDiffs = append(fileDiffs, df.Diff)
		fmt.Fprintf(&diffsBlock, "### %s (%s)\n```diff\n%s\n```\n\n", f.Path, df.ChangeType, df.Diff)
	}

	snippets := diff.BatchSnippets(fileDiffs, 3)
	contextBlock := o.batchContext(ctx, req, b, snippets, globalCtx)

	priorBlock := ""
	if prior := priorIssuesForBatch(req.PriorIssues, b); len(prior) > 0 {
		encoded, err := json.MarshalIndent(prior, "", "  ")
		if err == nil {
			priorBlock = string(encoded)
		}
	}

	focus := collectFocusAreas(b)
	prompt, err := o.prompts.Load("stage1_file_review", map[string]any{
		"PRID":        req.PRID,
		"PRTitle":     req.PRTitle,
		"FocusAreas":  focus,
		"Context":     contextBlock,
		"PriorIssues": priorBlock,
		"Diffs":       diffsBlock.String(),
	})
	if err != nil {
		return nil, err
	}

	out, err := parser.Request[FileReviewBatchOutput](ctx, o.client, prompt, BatchSchema, o.cfg.RepairAttempts, validateBatch)
	if err != nil {
		var parseErr *types.ParseError
		if errors.As(err, &parseErr) {
			slog.Warn("batch output unparsable after repairs, zero issues", "group", b.GroupID, "error", err)
			return nil, nil
		}
		return nil, err
	}

	var issues []domain.Issue
	for _, fr := range out.FileReviews {
		for _, issue := range fr.Issues {
			if issue.ID == "" {
				issue.ID = uuid.NewString()
			}
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

// batchContext fetches retrieval context scoped to one batch. When the
// fetch fails, the global context filtered by batch paths stands in;
// otherwise the context is empty.
func (o *Orchestrator) batchContext(ctx context.Context, req *domain.ReviewRequest, b batch.Batch, snippets []string, globalCtx *retriever.Context) string {
	paths := b.Paths()
	got, err := o.fetcher.GetPRContext(ctx, retriever.Params{
		Workspace:     req.Workspace,
		Project:       req.Project,
		Branch:        req.Branch,
		BaseBranch:    req.TargetBranch,
		ChangedFiles:  paths,
		DiffSnippets:  snippets,
		PRTitle:       req.PRTitle,
		PRDescription: req.PRDescription,
		DeletedFiles:  req.DeletedFiles,
		TopK:          o.cfg.TopK,
		MinScore:      o.cfg.MinScore,
	})
	if err != nil {
		slog.Warn("batch context fetch failed, filtering global context", "group", b.GroupID, "error", err)
		if globalCtx != nil {
			return o.formatContext(filterChunksByPaths(globalCtx.Chunks, paths))
		}
		return ""
	}

	chunks := got.Chunks
	if lookup, ok := o.fetcher.(ReferenceLookup); ok {
		refs, refErr := lookup.LookupReferences(ctx, req.Workspace, req.Project, []string{req.Branch}, paths, 2)
		if refErr != nil {
			slog.Debug("reference lookup failed", "group", b.GroupID, "error", refErr)
		} else {
			chunks = mergeLookupHits(chunks, refs)
		}
	}
	return o.formatContext(chunks)
}

// mergeLookupHits appends lookup hits not already present in the semantic
// results.
func mergeLookupHits(chunks, refs []domain.ScoredChunk) []domain.ScoredChunk {
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		seen[c.PointID] = true
	}
	for _, r := range refs {
		if !seen[r.PointID] {
			chunks = append(chunks, r)
		}
	}
	return chunks
}

// filterChunksByPaths keeps chunks whose path matches one of the batch
// paths exactly or by basename.
func filterChunksByPaths(chunks []domain.ScoredChunk, paths []string) []domain.ScoredChunk {
	var out []domain.ScoredChunk
	for _, c := range chunks {
		for _, p := range paths {
			if filesMatch(c.Payload.Path, p) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// formatContext renders retrieved chunks for the prompt, bounded by the
// configured context budget.
func (o *Orchestrator) formatContext(chunks []domain.ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	budget := o.cfg.MaxContextChars
	if budget <= 0 {
		budget = 24000
	}

	var sb strings.Builder
	for _, c := range chunks {
		entry := fmt.Sprintf("--- %s:%d-%d (%s, score %.2f)\n%s\n\n",
			c.Payload.Path, c.Payload.StartLine, c.Payload.EndLine,
			c.Payload.ContentType, c.Score, c.Payload.Content)
		if sb.Len()+len(entry) > budget {
			break
		}
		sb.WriteString(entry)
	}
	return strings.TrimSpace(sb.String())
}

// priorIssuesForBatch selects prior issues referencing any file in the batch.
func priorIssuesForBatch(prior []domain.Issue, b batch.Batch) []domain.Issue {
	if len(prior) == 0 {
		return nil
	}
	var out []domain.Issue
	for _, p := range prior {
		for _, f := range b.Files {
			if filesMatch(p.File, f.Path) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func collectFocusAreas(b batch.Batch) string {
	seen := make(map[string]bool)
	var areas []string
	for _, f := range b.Files {
		for _, a := range f.FocusAreas {
			if !seen[a] {
				seen[a] = true
				areas = append(areas, a)
			}
		}
	}
	return strings.Join(areas, ", ")
}

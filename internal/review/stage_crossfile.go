package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/domain"
	"code-review-orchestrator/internal/metrics"
	"code-review-orchestrator/internal/parser"
)

// runCrossFileStage executes Stage 2: one LLM call over the slimmed Stage 1
// findings, architecture context, migration paths and planner concerns.
func (o *Orchestrator) runCrossFileStage(ctx context.Context, req *domain.ReviewRequest, processed *domain.ProcessedDiff, plan *domain.ReviewPlan, issues []domain.Issue) (*domain.CrossFileResult, error) {
	start := time.Now()

	prompt, err := o.prompts.Load("stage2_cross_file", map[string]any{
		"PRID":           req.PRID,
		"SlimIssues":     slimIssues(issues),
		"Architecture":   architectureContext(req.Enrichment, req.ChangedFiles),
		"MigrationFiles": strings.Join(detectMigrationPaths(processed), "\n"),
		"Concerns":       strings.Join(plan.CrossFileConcerns, "\n"),
	})
	if err != nil {
		return nil, fmt.Errorf("stage 2 prompt: %w", err)
	}

	result, err := parser.Request[domain.CrossFileResult](ctx, o.client, prompt, CrossFileSchema, o.cfg.RepairAttempts, validateCrossFile)
	if err != nil {
		metrics.StageDuration.WithLabelValues("crossfile", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("stage 2 cross-file: %w", err)
	}
	metrics.StageDuration.WithLabelValues("crossfile", "success").Observe(time.Since(start).Seconds())
	return result, nil
}

// slimIssues strips fix diffs, snippets and resolution details from the
// issue list: Stage 2 reasons about locations and causes, not patches.
func slimIssues(issues []domain.Issue) string {
	if len(issues) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(issues)
	if err != nil {
		return "[]"
	}
	out := string(encoded)
	for i := range issues {
		for _, field := range []string{"id", "suggestedFixDescription", "suggestedFixDiff", "isResolved", "codeSnippet", "resolvedInPR"} {
			out, _ = sjson.Delete(out, strconv.Itoa(i)+"."+field)
		}
	}
	return out
}

// architectureContext renders enrichment-derived relationships among the
// changed files for the prompt.
func architectureContext(enrichment *domain.EnrichmentData, changedFiles []string) string {
	if enrichment.Empty() {
		return ""
	}
	changed := make(map[string]bool, len(changedFiles))
	for _, f := range changedFiles {
		changed[f] = true
	}

	var sb strings.Builder
	for file, related := range enrichment.Relationships {
		if !changed[file] {
			continue
		}
		fmt.Fprintf(&sb, "%s relates to: %s\n", file, strings.Join(related, ", "))
	}
	for typ, parents := range enrichment.ClassHierarchy {
		fmt.Fprintf(&sb, "%s extends/implements: %s\n", typ, strings.Join(parents, ", "))
	}
	for file, imports := range enrichment.Imports {
		if changed[file] && len(imports) > 0 {
			fmt.Fprintf(&sb, "%s imports: %s\n", file, strings.Join(imports, ", "))
		}
	}
	return strings.TrimSpace(sb.String())
}

// detectMigrationPaths finds schema-migration files in the diff: known
// migration directories plus anything ending in .sql.
func detectMigrationPaths(processed *domain.ProcessedDiff) []string {
	var out []string
	for _, f := range processed.Files {
		lower := strings.ToLower(f.Path)
		if strings.HasSuffix(lower, ".sql") {
			out = append(out, f.Path)
			continue
		}
		for _, marker := range config.MigrationPathMarkers {
			if strings.Contains("/"+lower, marker) {
				out = append(out, f.Path)
				break
			}
		}
	}
	return out
}

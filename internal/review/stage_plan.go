package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/diff"
	"code-review-orchestrator/internal/domain"
	"code-review-orchestrator/internal/metrics"
	"code-review-orchestrator/internal/parser"
)

// runPlanStage executes Stage 0: one LLM call producing the ReviewPlan,
// followed by the completeness check.
func (o *Orchestrator) runPlanStage(ctx context.Context, req *domain.ReviewRequest) (*domain.ReviewPlan, error) {
	start := time.Now()

	processed := diff.Process(req.Diff)
	var summary strings.Builder
	for _, path := range req.ChangedFiles {
		if f := processed.File(path); f != nil {
			fmt.Fprintf(&summary, "- %s (%s, +%d/-%d)\n", path, f.ChangeType, f.Added, f.Deleted)
		} else {
			fmt.Fprintf(&summary, "- %s\n", path)
		}
	}

	prompt, err := o.prompts.Load("stage0_plan", map[string]any{
		"PRID":          req.PRID,
		"PRTitle":       req.PRTitle,
		"PRDescription": req.PRDescription,
		"FileCount":     len(req.ChangedFiles),
		"FilesSummary":  summary.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("stage 0 prompt: %w", err)
	}

	plan, err := parser.Request[domain.ReviewPlan](ctx, o.client, prompt, PlanSchema, o.cfg.RepairAttempts, validatePlan)
	if err != nil {
		metrics.StageDuration.WithLabelValues("plan", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("stage 0 planning: %w", err)
	}

	ensureAllFilesPlanned(plan, req.ChangedFiles)
	metrics.StageDuration.WithLabelValues("plan", "success").Observe(time.Since(start).Seconds())
	return plan, nil
}

// ensureAllFilesPlanned appends any request file the planner missed to a
// LOW-priority catch-all group, so the plan always covers the request.
func ensureAllFilesPlanned(plan *domain.ReviewPlan, changedFiles []string) {
	planned := plan.PlannedPaths()

	var missing []domain.ReviewFile
	for _, path := range changedFiles {
		if !planned[path] {
			missing = append(missing, domain.ReviewFile{Path: path})
		}
	}
	if len(missing) == 0 {
		return
	}

	plan.FileGroups = append(plan.FileGroups, domain.FileGroup{
		GroupID:   config.GroupMissingFiles,
		Priority:  domain.PriorityLow,
		Rationale: "files omitted by the planner",
		Files:     missing,
	})
}

package review

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"code-review-orchestrator/internal/domain"
	"code-review-orchestrator/internal/metrics"
)

// maxHeadlineFindings caps how many critical/high reasons make it into the
// Stage 3 summary.
const maxHeadlineFindings = 10

// runReportStage executes Stage 3: one LLM call producing the markdown
// executive report.
func (o *Orchestrator) runReportStage(ctx context.Context, req *domain.ReviewRequest, processed *domain.ProcessedDiff, plan *domain.ReviewPlan, issues []domain.Issue, crossFile *domain.CrossFileResult) (string, error) {
	start := time.Now()

	crossFileJSON, err := json.MarshalIndent(crossFile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode cross-file result: %w", err)
	}

	prompt, err := o.prompts.Load("stage3_report", map[string]any{
		"PRID":          req.PRID,
		"PRTitle":       req.PRTitle,
		"PlanSummary":   summarizePlan(plan),
		"IssueSummary":  summarizeIssues(issues),
		"CrossFileJSON": string(crossFileJSON),
		"Added":         processed.TotalAdded,
		"Deleted":       processed.TotalDeleted,
		"FileCount":     len(processed.Files),
		"Incremental":   req.IsIncremental(),
	})
	if err != nil {
		return "", fmt.Errorf("stage 3 prompt: %w", err)
	}

	comment, err := o.client.Invoke(ctx, prompt)
	if err != nil {
		metrics.StageDuration.WithLabelValues("report", "error").Observe(time.Since(start).Seconds())
		return "", fmt.Errorf("stage 3 report: %w", err)
	}

	// The recommendation line anchors downstream automation; make sure it
	// survives whatever the model wrote.
	if !strings.Contains(comment, "Recommendation:") {
		comment = strings.TrimSpace(comment) + fmt.Sprintf("\n\nRecommendation: %s", crossFile.Recommendation)
	}
	metrics.StageDuration.WithLabelValues("report", "success").Observe(time.Since(start).Seconds())
	return comment, nil
}

// summarizePlan renders a compact plan overview for the report prompt.
func summarizePlan(plan *domain.ReviewPlan) string {
	var sb strings.Builder
	if plan.AnalysisSummary != "" {
		sb.WriteString(plan.AnalysisSummary)
		sb.WriteString("\n")
	}
	for _, g := range plan.FileGroups {
		fmt.Fprintf(&sb, "- [%s] %s: %d files", g.Priority, g.GroupID, len(g.Files))
		if g.Rationale != "" {
			fmt.Fprintf(&sb, " (%s)", g.Rationale)
		}
		sb.WriteString("\n")
	}
	if len(plan.SkippedFiles) > 0 {
		fmt.Fprintf(&sb, "- skipped: %d files\n", len(plan.SkippedFiles))
	}
	return strings.TrimSpace(sb.String())
}

// summarizeIssues renders counts by severity and category plus the top
// critical/high findings.
func summarizeIssues(issues []domain.Issue) string {
	if len(issues) == 0 {
		return "No issues found."
	}

	bySeverity := make(map[domain.Severity]int)
	byCategory := make(map[domain.Category]int)
	resolved := 0
	for _, issue := range issues {
		bySeverity[issue.Severity]++
		byCategory[issue.Category]++
		if issue.IsResolved {
			resolved++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total: %d issues (%d resolved)\n", len(issues), resolved)

	sb.WriteString("By severity:")
	for _, s := range []domain.Severity{domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow, domain.SeverityInfo} {
		if bySeverity[s] > 0 {
			fmt.Fprintf(&sb, " %s=%d", s, bySeverity[s])
		}
	}
	sb.WriteString("\nBy category:")
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(&sb, " %s=%d", c, byCategory[domain.Category(c)])
	}
	sb.WriteString("\n")

	headlines := 0
	for _, issue := range issues {
		if issue.Severity != domain.SeverityCritical && issue.Severity != domain.SeverityHigh {
			continue
		}
		if headlines >= maxHeadlineFindings {
			break
		}
		fmt.Fprintf(&sb, "- [%s/%s] %s:%d %s\n", issue.Severity, issue.Category, issue.File, issue.Line, issue.Reason)
		headlines++
	}
	return strings.TrimSpace(sb.String())
}

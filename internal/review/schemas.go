package review

import (
	"fmt"

	"code-review-orchestrator/internal/domain"
	"code-review-orchestrator/internal/llm"
)

// FileReview is the per-file slice of a Stage 1 batch output.
type FileReview struct {
	Path   string         `json:"path"`
	Issues []domain.Issue `json:"issues"`
}

// FileReviewBatchOutput is the Stage 1 output schema.
type FileReviewBatchOutput struct {
	FileReviews []FileReview `json:"fileReviews"`
}

// The schema definitions below are the single authoritative shape for each
// stage output: they drive both the provider's structured-output mode and
// local validation after parsing.

var severityEnum = []string{"CRITICAL", "HIGH", "MEDIUM", "LOW", "INFO"}
var categoryEnum = []string{
	"SECURITY", "PERFORMANCE", "CODE_QUALITY", "BUG_RISK", "STYLE",
	"DOCUMENTATION", "BEST_PRACTICES", "ERROR_HANDLING", "TESTING", "ARCHITECTURE",
}
var priorityEnum = []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"}

var issueSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":                      map[string]any{"type": "string"},
		"severity":                map[string]any{"type": "string", "enum": severityEnum},
		"category":                map[string]any{"type": "string", "enum": categoryEnum},
		"file":                    map[string]any{"type": "string"},
		"line":                    map[string]any{"type": "integer"},
		"reason":                  map[string]any{"type": "string"},
		"suggestedFixDescription": map[string]any{"type": "string"},
		"suggestedFixDiff":        map[string]any{"type": "string"},
		"isResolved":              map[string]any{"type": "boolean"},
		"codeSnippet":             map[string]any{"type": "string"},
	},
	"required": []string{"severity", "category", "file", "line", "reason"},
}

// PlanSchema is the Stage 0 output schema.
var PlanSchema = llm.Schema{
	Name: "ReviewPlan",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"analysisSummary": map[string]any{"type": "string"},
			"fileGroups": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"groupId":   map[string]any{"type": "string"},
						"priority":  map[string]any{"type": "string", "enum": priorityEnum},
						"rationale": map[string]any{"type": "string"},
						"files": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"path":            map[string]any{"type": "string"},
									"focusAreas":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
									"riskLevel":       map[string]any{"type": "string"},
									"estimatedIssues": map[string]any{"type": "integer"},
								},
								"required": []string{"path"},
							},
						},
					},
					"required": []string{"groupId", "priority", "files"},
				},
			},
			"skippedFiles": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path":   map[string]any{"type": "string"},
						"reason": map[string]any{"type": "string"},
					},
					"required": []string{"path"},
				},
			},
			"crossFileConcerns": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"fileGroups"},
	},
}

// BatchSchema is the Stage 1 output schema.
var BatchSchema = llm.Schema{
	Name: "FileReviewBatchOutput",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fileReviews": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path":   map[string]any{"type": "string"},
						"issues": map[string]any{"type": "array", "items": issueSchema},
					},
					"required": []string{"path", "issues"},
				},
			},
		},
		"required": []string{"fileReviews"},
	},
}

// CrossFileSchema is the Stage 2 output schema.
var CrossFileSchema = llm.Schema{
	Name: "CrossFileResult",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"riskLevel": map[string]any{"type": "string"},
			"issues": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"severity":      map[string]any{"type": "string", "enum": severityEnum},
						"category":      map[string]any{"type": "string", "enum": categoryEnum},
						"affectedFiles": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"reason":        map[string]any{"type": "string"},
						"suggestion":    map[string]any{"type": "string"},
					},
					"required": []string{"severity", "category", "affectedFiles", "reason"},
				},
			},
			"dataFlowConcerns": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"recommendation":   map[string]any{"type": "string", "enum": []string{"PASS", "PASS_WITH_WARNINGS", "FAIL"}},
			"confidence":       map[string]any{"type": "number"},
		},
		"required": []string{"riskLevel", "issues", "recommendation"},
	},
}

// validatePlan checks Stage 0 output beyond unmarshalling.
func validatePlan(p *domain.ReviewPlan) error {
	for i, g := range p.FileGroups {
		if !g.Priority.Valid() {
			return fmt.Errorf("fileGroups[%d].priority %q invalid", i, g.Priority)
		}
		if g.GroupID == "" {
			return fmt.Errorf("fileGroups[%d].groupId missing", i)
		}
	}
	return nil
}

// validateBatch checks Stage 1 output and normalises enum drift: unknown
// severities become MEDIUM, unknown categories CODE_QUALITY, so the closed
// sets hold on everything the pipeline emits downstream.
func validateBatch(b *FileReviewBatchOutput) error {
	for i := range b.FileReviews {
		for j := range b.FileReviews[i].Issues {
			issue := &b.FileReviews[i].Issues[j]
			if issue.File == "" {
				issue.File = b.FileReviews[i].Path
			}
			if !issue.Severity.Valid() {
				issue.Severity = domain.SeverityMedium
			}
			if !issue.Category.Valid() {
				issue.Category = domain.CategoryCodeQuality
			}
			if issue.Line < 1 {
				issue.Line = 1
			}
		}
	}
	return nil
}

// validateCrossFile checks Stage 2 output and drops single-file findings,
// which by definition belong to Stage 1.
func validateCrossFile(r *domain.CrossFileResult) error {
	if !r.Recommendation.Valid() {
		return fmt.Errorf("recommendation %q invalid", r.Recommendation)
	}
	kept := r.Issues[:0]
	for _, issue := range r.Issues {
		if len(issue.AffectedFiles) < 2 {
			continue
		}
		if !issue.Severity.Valid() {
			issue.Severity = domain.SeverityMedium
		}
		if !issue.Category.Valid() {
			issue.Category = domain.CategoryArchitecture
		}
		kept = append(kept, issue)
	}
	r.Issues = kept
	return nil
}

package prompts

// defaults holds the built-in stage templates, keyed by template name.
var defaults = map[string]string{
	"stage0_plan": `You are planning a code review for pull request {{.PRID}}: {{.PRTitle}}

{{if .PRDescription}}Description:
{{.PRDescription}}

{{end}}Changed files ({{.FileCount}} total):
{{.FilesSummary}}

Group the files for review. Put files that must be read together in the same
group. Assign each group a priority (CRITICAL, HIGH, MEDIUM, LOW) and a short
rationale. Skip files not worth reviewing (generated code, lockfiles) with a
reason. List any cross-file concerns worth a dedicated look.

Every changed file must appear exactly once: either in a group or in
skippedFiles.

Respond with a JSON object:
{
  "analysisSummary": "...",
  "fileGroups": [
    {
      "groupId": "...",
      "priority": "HIGH",
      "rationale": "...",
      "files": [
        {"path": "...", "focusAreas": ["..."], "riskLevel": "high", "estimatedIssues": 2}
      ]
    }
  ],
  "skippedFiles": [{"path": "...", "reason": "..."}],
  "crossFileConcerns": ["..."]
}`,

	"stage1_file_review": `You are reviewing a batch of files from pull request {{.PRID}}: {{.PRTitle}}

{{if .FocusAreas}}Planner focus areas: {{.FocusAreas}}

{{end}}{{if .Context}}Repository context retrieved for this batch:
{{.Context}}

{{end}}{{if .PriorIssues}}Previously reported issues touching these files. For each one,
report it again with its ORIGINAL id: set isResolved=true only when the diff
clearly fixes it, otherwise keep isResolved=false. If two issues share the
same root cause (same category and file, lines within three of each other,
similar reason), merge them into one. Do not invent duplicates.
{{.PriorIssues}}

{{end}}Diffs to review:
{{.Diffs}}

Report genuine problems only. For each issue give severity (CRITICAL, HIGH,
MEDIUM, LOW, INFO), category (SECURITY, PERFORMANCE, CODE_QUALITY, BUG_RISK,
STYLE, DOCUMENTATION, BEST_PRACTICES, ERROR_HANDLING, TESTING, ARCHITECTURE),
the file, the line in the NEW version of the file, the reason, and a concrete
fix: a one-line description plus a unified-diff suggestion when possible.

Respond with a JSON object:
{
  "fileReviews": [
    {
      "path": "...",
      "issues": [
        {
          "id": "...",
          "severity": "HIGH",
          "category": "SECURITY",
          "file": "...",
          "line": 42,
          "reason": "...",
          "suggestedFixDescription": "...",
          "suggestedFixDiff": "...",
          "isResolved": false
        }
      ]
    }
  ]
}`,

	"stage2_cross_file": `You are checking pull request {{.PRID}} for cross-file problems.

Per-file findings so far (location, severity, category, reason only):
{{.SlimIssues}}

{{if .Architecture}}Architecture context:
{{.Architecture}}

{{end}}{{if .MigrationFiles}}Migration files in this change:
{{.MigrationFiles}}

{{end}}{{if .Concerns}}Planner cross-file concerns:
{{.Concerns}}

{{end}}Look for issues that only appear across file boundaries: broken
contracts between caller and callee, mismatched migrations and models,
inconsistent error handling across layers, data flowing unvalidated between
files. Every issue MUST involve at least two files.

Respond with a JSON object:
{
  "riskLevel": "low|medium|high",
  "issues": [
    {
      "severity": "HIGH",
      "category": "BUG_RISK",
      "affectedFiles": ["a.go", "b.go"],
      "reason": "...",
      "suggestion": "..."
    }
  ],
  "dataFlowConcerns": ["..."],
  "recommendation": "PASS|PASS_WITH_WARNINGS|FAIL",
  "confidence": 0.8
}`,

	"stage3_report": `Write the executive review report for pull request {{.PRID}}: {{.PRTitle}}

Plan summary:
{{.PlanSummary}}

Per-file findings:
{{.IssueSummary}}

Cross-file analysis:
{{.CrossFileJSON}}

Diff size: +{{.Added}} / -{{.Deleted}} lines across {{.FileCount}} files.
{{if .Incremental}}
This is an incremental review. Start with a "Resolved vs new" section
summarising which previously reported issues were fixed and what is new.
{{end}}
Produce a markdown report: a short executive summary, a table of issue
counts by severity, the most important findings, and end with a single line
"Recommendation: PASS", "Recommendation: PASS_WITH_WARNINGS" or
"Recommendation: FAIL" matching the cross-file analysis. If there are no
changes to review, say there are no changes and recommend PASS.`,
}

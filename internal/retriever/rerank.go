package retriever

import (
	"strings"

	"code-review-orchestrator/internal/domain"
)

// Path-keyword priority coefficients. A path matching a high keyword is
// boosted, test scaffolding is demoted.
var (
	highPriorityKeywords = []string{
		"service", "controller", "handler", "api", "core", "auth",
		"security", "permission", "repository", "dao", "migration",
	}
	mediumPriorityKeywords = []string{
		"model", "entity", "dto", "util", "helper", "common",
		"component", "hook", "client", "integration",
	}
	lowPriorityKeywords = []string{
		"test", "spec", "config", "mock", "fixture", "stub",
	}
)

const (
	highPriorityBoost   = 1.3
	mediumPriorityBoost = 1.1
	lowPriorityPenalty  = 0.8

	semanticNamesBonus = 1.1
	docstringBonus     = 1.05
)

// contentTypeCoefficients weight chunks by how they were produced.
var contentTypeCoefficients = map[domain.ContentType]float64{
	domain.ContentFunctionsClasses: 1.2,
	domain.ContentFallback:         1.0,
	domain.ContentOversizedSplit:   0.95,
	domain.ContentSimplifiedCode:   0.7,
}

// pathCoefficient returns the priority multiplier for a file path.
func pathCoefficient(path string) float64 {
	lower := strings.ToLower(path)
	for _, kw := range highPriorityKeywords {
		if strings.Contains(lower, kw) {
			return highPriorityBoost
		}
	}
	for _, kw := range mediumPriorityKeywords {
		if strings.Contains(lower, kw) {
			return mediumPriorityBoost
		}
	}
	for _, kw := range lowPriorityKeywords {
		if strings.Contains(lower, kw) {
			return lowPriorityPenalty
		}
	}
	return 1.0
}

// rerank applies the multiplicative priority adjustment to a chunk score.
// The result is capped at 1.0 so downstream thresholds stay meaningful.
func rerank(chunk domain.ScoredChunk) float64 {
	score := chunk.Score
	score *= pathCoefficient(chunk.Payload.Path)

	if coeff, ok := contentTypeCoefficients[chunk.Payload.ContentType]; ok {
		score *= coeff
	}
	if len(chunk.Payload.SemanticNames) > 0 {
		score *= semanticNamesBonus
	}
	if chunk.Payload.Docstring != "" {
		score *= docstringBonus
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Package parser coerces LLM output into typed, validated structures. All
// stages try structured-output mode first; on failure the raw text is
// cleaned, parsed, and — when still invalid — repaired by the LLM itself a
// bounded number of times.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"code-review-orchestrator/internal/llm"
	"code-review-orchestrator/internal/metrics"
	"code-review-orchestrator/internal/types"
)

// DefaultMaxRepairs bounds the repair loop: after the first parse, at most
// two LLM-assisted repairs.
const DefaultMaxRepairs = 2

// Request sends prompt to the client preferring structured-output mode,
// then parses the response into T. validate may be nil when unmarshalling
// alone is enough.
func Request[T any](ctx context.Context, client llm.Client, prompt string, schema llm.Schema, maxRepairs int, validate func(*T) error) (*T, error) {
	raw, err := client.InvokeStructured(ctx, prompt, schema)
	if err == llm.ErrStructuredUnsupported {
		raw, err = client.Invoke(ctx, prompt)
	}
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", schema.Name, err)
	}
	return Parse(ctx, client, raw, schema, maxRepairs, validate)
}

// Parse coerces raw LLM text into T, repairing through the client when the
// payload is malformed. The loop is an explicit bounded state machine:
// parse -> repair request -> parse -> ... with at most maxRepairs repairs.
func Parse[T any](ctx context.Context, client llm.Client, raw string, schema llm.Schema, maxRepairs int, validate func(*T) error) (*T, error) {
	if maxRepairs < 0 {
		maxRepairs = DefaultMaxRepairs
	}

	attempts := 0
	current := raw
	var lastErr error

	for {
		attempts++
		value, err := parseOnce[T](current, validate)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempts > maxRepairs {
			metrics.ParseRepairs.WithLabelValues(schema.Name, "exhausted").Inc()
			return nil, &types.ParseError{Schema: schema.Name, Attempts: attempts, Err: lastErr}
		}

		slog.Warn("response parse failed, requesting repair",
			"schema", schema.Name, "attempt", attempts, "error", err)

		repaired, repairErr := repair(ctx, client, current, err, schema)
		if repairErr != nil {
			metrics.ParseRepairs.WithLabelValues(schema.Name, "exhausted").Inc()
			return nil, &types.ParseError{Schema: schema.Name, Attempts: attempts, Err: repairErr}
		}
		metrics.ParseRepairs.WithLabelValues(schema.Name, "repaired").Inc()
		current = repaired
	}
}

// parseOnce cleans markdown fences, trims to the outermost object, and
// unmarshals with validation.
func parseOnce[T any](raw string, validate func(*T) error) (*T, error) {
	cleaned := types.CleanJSONFromMarkdown(raw)
	cleaned = types.ExtractJSONObject(cleaned)
	if !gjson.Valid(cleaned) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	var value T
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if validate != nil {
		if err := validate(&value); err != nil {
			return nil, fmt.Errorf("schema validation: %w", err)
		}
	}
	return &value, nil
}

// repair asks the LLM to fix a broken payload given the validation error
// and the target schema, expecting only a valid object back.
func repair(ctx context.Context, client llm.Client, broken string, parseErr error, schema llm.Schema) (string, error) {
	schemaJSON, err := json.Marshal(schema.Definition)
	if err != nil {
		return "", fmt.Errorf("marshal %s schema: %w", schema.Name, err)
	}

	prompt := fmt.Sprintf(`The following JSON payload is invalid.

Error: %s

Payload:
%s

Target JSON schema (%s):
%s

Return ONLY the corrected JSON object. No explanation, no markdown fences.`,
		parseErr, broken, schema.Name, schemaJSON)

	repaired, err := client.Invoke(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("repair call: %w", err)
	}
	return repaired, nil
}

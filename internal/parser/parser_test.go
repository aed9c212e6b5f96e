package parser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"code-review-orchestrator/internal/llm"
	"code-review-orchestrator/internal/types"
)

type verdict struct {
	Score   int    `json:"score"`
	Summary string `json:"summary"`
}

func validVerdict(v *verdict) error {
	if v.Score < 0 || v.Score > 100 {
		return fmt.Errorf("score %d out of range", v.Score)
	}
	return nil
}

var verdictSchema = llm.Schema{
	Name: "Verdict",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":   map[string]any{"type": "integer"},
			"summary": map[string]any{"type": "string"},
		},
	},
}

func TestParseCleanPayload(t *testing.T) {
	client := &llm.ScriptedClient{}
	got, err := Parse[verdict](context.Background(), client, `{"score": 90, "summary": "fine"}`, verdictSchema, 2, validVerdict)
	require.NoError(t, err)
	require.Equal(t, 90, got.Score)
	require.Zero(t, client.CallCount(), "clean payloads must not call the LLM")
}

func TestParseMarkdownFencedPayload(t *testing.T) {
	raw := "```json\n{\"score\": 55, \"summary\": \"meh\"}\n```"
	got, err := Parse[verdict](context.Background(), &llm.ScriptedClient{}, raw, verdictSchema, 2, validVerdict)
	require.NoError(t, err)
	require.Equal(t, 55, got.Score)
}

func TestParseProseWrappedPayload(t *testing.T) {
	raw := "Sure! Here is the verdict you asked for:\n{\"score\": 10, \"summary\": \"bad\"}\nHope that helps."
	got, err := Parse[verdict](context.Background(), &llm.ScriptedClient{}, raw, verdictSchema, 2, validVerdict)
	require.NoError(t, err)
	require.Equal(t, 10, got.Score)
}

func TestParseRepairLoop(t *testing.T) {
	// First repair returns still-broken JSON, second returns a valid object.
	client := &llm.ScriptedClient{
		Rules: []llm.ScriptRule{
			{Contains: "score\": oops", Response: `{"score": 200, "summary": "still wrong"}`},
			{Contains: `"score": 200`, Response: `{"score": 80, "summary": "repaired"}`},
		},
	}
	got, err := Parse[verdict](context.Background(), client, `{"score": oops}`, verdictSchema, 2, validVerdict)
	require.NoError(t, err)
	require.Equal(t, 80, got.Score)
	require.Equal(t, 2, client.CallCount())
}

func TestParseRepairExhausted(t *testing.T) {
	client := &llm.ScriptedClient{Default: "not json at all"}
	_, err := Parse[verdict](context.Background(), client, "garbage", verdictSchema, 2, validVerdict)
	require.Error(t, err)

	var perr *types.ParseError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "Verdict", perr.Schema)
	require.Equal(t, 3, perr.Attempts)
	require.Equal(t, 2, client.CallCount(), "exactly two repairs attempted")
}

func TestRequestStructuredFirst(t *testing.T) {
	client := &llm.ScriptedClient{
		Structured: true,
		Default:    `{"score": 42, "summary": "structured"}`,
	}
	got, err := Request[verdict](context.Background(), client, "judge this", verdictSchema, 2, validVerdict)
	require.NoError(t, err)
	require.Equal(t, 42, got.Score)
}

func TestRequestFallsBackToText(t *testing.T) {
	client := &llm.ScriptedClient{
		Structured: false, // InvokeStructured reports unsupported
		Default:    `{"score": 7, "summary": "text mode"}`,
	}
	got, err := Request[verdict](context.Background(), client, "judge this", verdictSchema, 2, validVerdict)
	require.NoError(t, err)
	require.Equal(t, 7, got.Score)
}

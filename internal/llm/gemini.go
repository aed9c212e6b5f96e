package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/metrics"
)

// GeminiClient implements Client using the Google GenAI SDK. Structured
// calls use application/json response mode with the schema inlined in the
// prompt; validation stays with the local parse loop.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
	timeout     time.Duration
	retry       retryPolicy
}

// NewGeminiClient builds the gemini backend from configuration.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		retry: retryPolicy{
			attempts:   cfg.MaxRetries,
			backoff:    cfg.Backoff,
			maxBackoff: cfg.MaxBackoff,
		},
	}, nil
}

func (c *GeminiClient) Name() string {
	return "gemini-" + c.model
}

func (c *GeminiClient) Invoke(ctx context.Context, prompt string) (string, error) {
	return c.retry.do(ctx, "invoke", func() (string, error) {
		text, err := c.generate(ctx, prompt, false)
		c.observe("text", err)
		return text, err
	})
}

func (c *GeminiClient) InvokeStructured(ctx context.Context, prompt string, schema Schema) (string, error) {
	schemaJSON, err := json.Marshal(schema.Definition)
	if err != nil {
		return "", fmt.Errorf("marshal %s schema: %w", schema.Name, err)
	}
	full := fmt.Sprintf("%s\n\nRespond with a single JSON object conforming to this schema:\n%s", prompt, schemaJSON)
	return c.retry.do(ctx, "invoke_structured", func() (string, error) {
		text, err := c.generate(ctx, full, true)
		c.observe("structured", err)
		return text, err
	})
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	temp := float32(c.temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return text, nil
}

func (c *GeminiClient) observe(mode string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LLMCalls.WithLabelValues(c.Name(), mode, status).Inc()
}

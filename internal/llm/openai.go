package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/metrics"
	"code-review-orchestrator/internal/types"
)

// OpenAIClient implements Client using the official OpenAI SDK against any
// OpenAI-compatible endpoint.
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
	retry       retryPolicy
}

// NewOpenAIClient builds the default backend from configuration.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.Endpoint),
	)
	return &OpenAIClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		retry: retryPolicy{
			attempts:   cfg.MaxRetries,
			backoff:    cfg.Backoff,
			maxBackoff: cfg.MaxBackoff,
		},
	}
}

func (c *OpenAIClient) Name() string {
	return "openai-" + c.model
}

func (c *OpenAIClient) Invoke(ctx context.Context, prompt string) (string, error) {
	return c.retry.do(ctx, "invoke", func() (string, error) {
		text, err := c.complete(ctx, prompt, nil)
		c.observe("text", err)
		return text, err
	})
}

func (c *OpenAIClient) InvokeStructured(ctx context.Context, prompt string, schema Schema) (string, error) {
	format := &openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   schema.Name,
				Schema: schema.Definition,
				Strict: openai.Bool(true),
			},
		},
	}
	return c.retry.do(ctx, "invoke_structured", func() (string, error) {
		text, err := c.complete(ctx, prompt, format)
		c.observe("structured", err)
		return text, err
	})
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string, format *openai.ChatCompletionNewParamsResponseFormatUnion) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
	}
	if format != nil {
		params.ResponseFormat = *format
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) observe(mode string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LLMCalls.WithLabelValues(c.Name(), mode, status).Inc()
}

// wrapOpenAIError wraps rate limits and server errors into RetryableError.
func wrapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewRetryableError(err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		statusCode := apiErr.StatusCode
		if statusCode == 429 || (statusCode >= 500 && statusCode < 600) {
			return types.NewRetryableError(err)
		}
	}
	return err
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/metrics"
)

// LangChainClient implements Client through LangChainGo's OpenAI-compatible
// model wrapper. It has no schema-enforcing mode; structured calls use JSON
// mode and rely on the local parse/repair loop.
type LangChainClient struct {
	llm         *lcopenai.LLM
	model       string
	temperature float64
	timeout     time.Duration
	retry       retryPolicy
}

// NewLangChainClient builds the langchain backend from configuration.
func NewLangChainClient(cfg config.LLMConfig) (*LangChainClient, error) {
	llm, err := lcopenai.New(
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithBaseURL(cfg.Endpoint),
		lcopenai.WithToken(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain llm: %w", err)
	}
	return &LangChainClient{
		llm:         llm,
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

func (c *LangChainClient) Name() string {
	return "langchain-" + c.model
}

func (c *LangChainClient) Invoke(ctx context.Context, prompt string) (string, error) {
	return c.retry.do(ctx, "invoke", func() (string, error) {
		text, err := c.generate(ctx, prompt, false)
		c.observe("text", err)
		return text, err
	})
}

// InvokeStructured runs in JSON mode; the schema itself is appended to the
// prompt because LangChainGo does not forward json_schema response formats.
func (c *LangChainClient) InvokeStructured(ctx context.Context, prompt string, schema Schema) (string, error) {
	schemaJSON, err := json.Marshal(schema.Definition)
	if err != nil {
		return "", fmt.Errorf("marshal %s schema: %w", schema.Name, err)
	}
	full := fmt.Sprintf("%s\n\nRespond with a single JSON object conforming to the %s schema:\n%s", prompt, schema.Name, schemaJSON)
	return c.retry.do(ctx, "invoke_structured", func() (string, error) {
		text, err := c.generate(ctx, full, true)
		c.observe("structured", err)
		return text, err
	})
}

func (c *LangChainClient) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	opts := []llms.CallOption{llms.WithTemperature(c.temperature)}
	if jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		opts...,
	)
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return resp.Choices[0].Content, nil
}

func (c *LangChainClient) observe(mode string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LLMCalls.WithLabelValues(c.Name(), mode, status).Inc()
}

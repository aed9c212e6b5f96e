package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ScriptedClient replays canned responses keyed by prompt substrings. Tests
// use it to drive the pipeline without a provider.
type ScriptedClient struct {
	mu sync.Mutex
	// Rules are evaluated in order; the first whose Contains matches wins.
	Rules []ScriptRule
	// Default is returned when no rule matches. Empty Default with no match
	// is an error, which keeps tests honest about their prompts.
	Default string
	// Structured controls whether InvokeStructured succeeds or reports
	// ErrStructuredUnsupported to exercise the fallback path.
	Structured bool
	// Calls records every prompt received, in order.
	Calls []string
}

// ScriptRule maps a prompt substring to a canned response.
type ScriptRule struct {
	Contains string
	Response string
	Err      error
}

func (c *ScriptedClient) Name() string { return "scripted" }

func (c *ScriptedClient) Invoke(_ context.Context, prompt string) (string, error) {
	return c.respond(prompt)
}

func (c *ScriptedClient) InvokeStructured(_ context.Context, prompt string, _ Schema) (string, error) {
	if !c.Structured {
		return "", ErrStructuredUnsupported
	}
	return c.respond(prompt)
}

func (c *ScriptedClient) respond(prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, prompt)

	for _, rule := range c.Rules {
		if strings.Contains(prompt, rule.Contains) {
			if rule.Err != nil {
				return "", rule.Err
			}
			return rule.Response, nil
		}
	}
	if c.Default != "" {
		return c.Default, nil
	}
	return "", fmt.Errorf("scripted client: no rule matches prompt %q", truncate(prompt, 120))
}

// CallCount returns how many prompts the client has served.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package llm

import (
	"context"
	"log/slog"
	"time"

	"code-review-orchestrator/internal/types"
)

// retryPolicy bounds exponential backoff around retryable calls.
type retryPolicy struct {
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
}

func (p retryPolicy) normalized() retryPolicy {
	if p.attempts <= 0 {
		p.attempts = 3
	}
	if p.backoff <= 0 {
		p.backoff = time.Second
	}
	if p.maxBackoff <= 0 {
		p.maxBackoff = 30 * time.Second
	}
	return p
}

// do runs fn, retrying with exponential backoff while the error is
// retryable and the context is alive.
func (p retryPolicy) do(ctx context.Context, op string, fn func() (string, error)) (string, error) {
	p = p.normalized()
	delay := p.backoff
	var lastErr error

	for attempt := 0; attempt < p.attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !types.IsRetryable(err) {
			return "", err
		}
		if attempt == p.attempts-1 {
			break
		}

		slog.Warn("llm call failed, retrying", "op", op, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.maxBackoff {
			delay = p.maxBackoff
		}
	}
	return "", lastErr
}

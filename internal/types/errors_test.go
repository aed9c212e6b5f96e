package types

import (
	"errors"
	"testing"
)

func TestRetryableError(t *testing.T) {
	baseErr := errors.New("base error")
	retryErr := NewRetryableError(baseErr)

	// Test Error() string
	expectedMsg := "retryable error: base error"
	if retryErr.Error() != expectedMsg {
		t.Errorf("expected error message %q, got %q", expectedMsg, retryErr.Error())
	}

	// Test Unwrap()
	unwrapped := errors.Unwrap(retryErr)
	if unwrapped != baseErr {
		t.Errorf("expected unwrapped error to be %v, got %v", baseErr, unwrapped)
	}

	if !IsRetryable(retryErr) {
		t.Error("expected IsRetryable to match RetryableError")
	}
	if IsRetryable(baseErr) {
		t.Error("expected bare error to not be retryable")
	}

	// Test errors.Is (semantics check via Unwrap)
	if !errors.Is(retryErr, baseErr) {
		t.Error("expected errors.Is to match base error")
	}
}

func TestParseError(t *testing.T) {
	base := errors.New("unexpected token")
	perr := &ParseError{Schema: "ReviewPlan", Attempts: 3, Err: base}

	if !errors.Is(perr, base) {
		t.Error("expected errors.Is to reach wrapped error")
	}

	var target *ParseError
	if !errors.As(error(perr), &target) {
		t.Error("expected errors.As to match ParseError")
	}
	if target.Schema != "ReviewPlan" || target.Attempts != 3 {
		t.Errorf("unexpected fields: %+v", target)
	}
}

func TestBudgetExceededError(t *testing.T) {
	err := &BudgetExceededError{Kind: "files", Count: 12000, Limit: 10000}
	want := "indexing budget exceeded: 12000 files (limit 10000)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

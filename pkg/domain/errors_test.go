package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainErrorMessage(t *testing.T) {
	err := NewDomainError("Registry.Get", ErrToolNotFound, "get_weather")
	want := "Registry.Get: get_weather: tool not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrToolNotFound) {
		t.Error("errors.Is(err, ErrToolNotFound) = false")
	}
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{ErrToolNotFound, CodeToolNotFound},
		{ErrMaxIterations, CodeMaxIterations},
		{NewDomainError("op", ErrRateLimit, ""), CodeRateLimit},
		{fmt.Errorf("wrapped: %w", ErrAuthInvalid), CodeAuthInvalid},
		{fmt.Errorf("some random error"), CodeUnknown},
		{nil, CodeUnknown},
	}

	for _, tt := range tests {
		if got := ErrorCodeOf(tt.err); got != tt.want {
			t.Errorf("ErrorCodeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestWrapOp(t *testing.T) {
	if WrapOp("op", nil) != nil {
		t.Error("WrapOp with nil error should return nil")
	}
	err := WrapOp("Chat", ErrRateLimit)
	if !errors.Is(err, ErrRateLimit) {
		t.Error("wrapped error lost its sentinel")
	}
}

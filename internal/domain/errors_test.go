package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestProviderErrorIs(t *testing.T) {
	tests := []struct {
		status    int
		auth      bool
		retryable bool
	}{
		{401, true, false},
		{403, true, false},
		{400, false, false},
		{429, false, true},
		{500, false, true},
		{503, false, true},
	}

	for _, tt := range tests {
		err := fmt.Errorf("wrapped: %w", &ProviderError{Provider: "openai", StatusCode: tt.status, Message: "boom"})

		if got := errors.Is(err, ErrAuth); got != tt.auth {
			t.Errorf("status %d: errors.Is(ErrAuth) = %v, want %v", tt.status, got, tt.auth)
		}
		if got := errors.Is(err, ErrProvider); got == tt.auth {
			t.Errorf("status %d: errors.Is(ErrProvider) = %v, want %v", tt.status, got, !tt.auth)
		}

		var pe *ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("status %d: errors.As failed", tt.status)
		}
		if pe.Retryable() != tt.retryable {
			t.Errorf("status %d: Retryable() = %v, want %v", tt.status, pe.Retryable(), tt.retryable)
		}
	}
}

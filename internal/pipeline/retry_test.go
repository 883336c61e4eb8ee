package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgallion1/quizgest/internal/generate"
)

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("unit: %w", &generate.RetryableError{StatusCode: 429})) {
		t.Error("expected wrapped RetryableError to be retryable")
	}
	if IsRetryable(errors.New("bad request")) {
		t.Error("expected plain error not to be retryable")
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := retryPolicy{base: 100 * time.Millisecond, max: time.Second}

	tests := []struct {
		attempt  int
		min, max time.Duration
	}{
		{0, 100 * time.Millisecond, 150 * time.Millisecond},
		{1, 200 * time.Millisecond, 300 * time.Millisecond},
		{2, 400 * time.Millisecond, 600 * time.Millisecond},
		{3, 800 * time.Millisecond, time.Second},
		{4, time.Second, time.Second},
		{60, time.Second, time.Second},
	}
	for _, tt := range tests {
		for range 50 {
			d := p.delay(tt.attempt)
			if d < tt.min || d > tt.max {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", tt.attempt, d, tt.min, tt.max)
			}
		}
	}
}

// A retry that cannot fit before the unit deadline is not waited for.
func TestGenerateWithRetry_StopsAtDeadline(t *testing.T) {
	gen := &fakeGen{fn: func(string) (string, error) {
		return "", &generate.RetryableError{StatusCode: 503, Message: "unavailable"}
	}}
	o := newTestOrchestrator(t, nil, gen)
	o.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	_, err := o.generateWithRetry(ctx, quietLog(), "prompt")
	if !IsRetryable(err) {
		t.Fatalf("expected the provider error, got %v", err)
	}
	if gen.calls() != 1 {
		t.Errorf("expected 1 call, got %d", gen.calls())
	}
	if time.Since(start) > 5*time.Second {
		t.Error("expected no wait past the deadline")
	}
}

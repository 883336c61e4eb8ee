// Package generate talks to the external text-generation provider and turns
// its untrusted output into validated question items.
package generate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Generator sends one prompt to a provider and returns the raw text reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// ErrInvalidResponse means the provider replied but nothing usable could be
// parsed from the reply.
var ErrInvalidResponse = errors.New("invalid generation response")

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

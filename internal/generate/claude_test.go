package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeClient_Generate(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"[{\"question\":"},{"type":"text","text":"\"Q?\"}]"}]}`))
	}))
	defer srv.Close()

	stats := NewLLMStats(time.Hour)
	c := NewClaudeClient("test-key", "claude-test", stats).WithEndpoint(srv.URL)
	defer c.Close()

	text, err := c.Generate(context.Background(), "write questions")
	require.NoError(t, err)
	assert.Equal(t, `[{"question":"Q?"}]`, text)
	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, SystemPrompt, got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "write questions", got.Messages[0].Content)
	assert.Equal(t, 1, stats.Snapshot().Count)
	assert.Equal(t, "claude-test", c.Model())
}

func TestClaudeClient_RetryableStatus(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", code)
		}))
		c := NewClaudeClient("k", "m", nil).WithEndpoint(srv.URL)

		_, err := c.Generate(context.Background(), "p")
		var retry *RetryableError
		require.True(t, errors.As(err, &retry), "status %d", code)
		assert.Equal(t, code, retry.StatusCode)
		srv.Close()
	}
}

func TestClaudeClient_PermanentFailures(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"type":"invalid_request_error","message":"bad"}}`},
		{"api error body", http.StatusOK, `{"error":{"type":"overloaded","message":"nope"}}`},
		{"not json", http.StatusOK, `<html>`},
		{"empty content", http.StatusOK, `{"content":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClaudeClient("k", "m", nil).WithEndpoint(srv.URL).Generate(context.Background(), "p")
			require.Error(t, err)
			var retry *RetryableError
			assert.False(t, errors.As(err, &retry))
		})
	}
}

func TestRetryableError_Message(t *testing.T) {
	err := &RetryableError{StatusCode: 503, Message: "down"}
	assert.Equal(t, "retryable error (status 503): down", err.Error())
}

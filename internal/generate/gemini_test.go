package generate

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rest 429", &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"}, true},
		{"rest 503", fmt.Errorf("call: %w", &googleapi.Error{Code: http.StatusServiceUnavailable}), true},
		{"rest 400", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "quota"), true},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), true},
		{"grpc invalid", status.Error(codes.InvalidArgument, "bad"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var retry *RetryableError
			assert.Equal(t, tt.retryable, errors.As(classifyGeminiError(tt.err), &retry))
		})
	}
}

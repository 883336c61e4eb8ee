package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiClient generates with a Google Gemini model.
type GeminiClient struct {
	client *genai.Client
	model  string

	Stats *LLMStats
}

func NewGeminiClient(ctx context.Context, apiKey, model string, stats *LLMStats) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, Stats: stats}, nil
}

func (g *GeminiClient) Model() string { return g.model }

// Generate asks for a JSON reply and returns the text parts of the first
// candidate.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = genai.NewUserContent(genai.Text(SystemPrompt))

	start := time.Now()
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if g.Stats != nil {
		g.Stats.Record(time.Since(start).Milliseconds())
	}
	if err != nil {
		return "", classifyGeminiError(err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty response from gemini", ErrInvalidResponse)
	}
	return sb.String(), nil
}

// classifyGeminiError marks quota and availability failures as retryable.
func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500) {
		return &RetryableError{StatusCode: gerr.Code, Message: gerr.Message}
	}
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return &RetryableError{StatusCode: http.StatusTooManyRequests, Message: err.Error()}
	case codes.Unavailable, codes.Internal:
		return &RetryableError{StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}
	return fmt.Errorf("gemini api: %w", err)
}

func (g *GeminiClient) Close() {
	_ = g.client.Close()
}

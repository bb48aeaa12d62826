package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Classifier sends content to a language model together with a system prompt
// and returns the raw text of its answer, expected to be a JSON object.
type Classifier interface {
	Classify(ctx context.Context, systemPrompt string, content string) (string, error)
}

// APIError is a non-200 answer of a classification backend.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("classification api error %d %s: %s", e.StatusCode, e.Status, e.Message)
}

var (
	ErrQuotaExhausted     = errors.New("classification quota exhausted")
	ErrMalformedResponse  = errors.New("malformed classification response")
	ErrEmptyResponse      = errors.New("empty classification response")
	ErrUnsupportedBackend = errors.New("unsupported classification backend")
)

// IsQuotaExceeded reports whether err means the caller ran over a rate or
// usage allowance, as opposed to any other failure.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) && openaiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted")
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

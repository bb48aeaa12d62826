package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel    = "gemini-2.0-flash"
)

// Gemini API request structure
type geminiRequest struct {
	SystemInstruction *geminiContent        `json:"systemInstruction,omitempty"`
	Contents          []geminiContent       `json:"contents"`
	GenerationConfig  *geminiGenerateConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerateConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

// Gemini API response structure
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *geminiError `json:"error"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GeminiClassifier calls generateContent over REST. The free tier is metered
// per minute, wrap it in a QuotaRetryClassifier.
type GeminiClassifier struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func NewGeminiClassifier(apiKey, model, endpoint string) *GeminiClassifier {
	if model == "" {
		model = DefaultGeminiModel
	}
	if endpoint == "" {
		endpoint = DefaultGeminiEndpoint
	}
	return &GeminiClassifier{
		apiKey:   apiKey,
		model:    model,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *GeminiClassifier) Classify(ctx context.Context, systemPrompt string, content string) (string, error) {
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: content}}},
		},
		GenerationConfig: &geminiGenerateConfig{ResponseMimeType: "application/json"},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	uri := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.endpoint, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(jsonData))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "gemini request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response")
	}

	var geminiResp geminiResponse
	decodeErr := json.Unmarshal(body, &geminiResp)

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Message: string(body)}
		if decodeErr == nil && geminiResp.Error != nil {
			apiErr.Status = geminiResp.Error.Status
			apiErr.Message = geminiResp.Error.Message
		}
		return "", apiErr
	}
	if decodeErr != nil {
		return "", errors.Wrap(decodeErr, "failed to parse gemini response")
	}
	if geminiResp.Error != nil {
		return "", &APIError{StatusCode: geminiResp.Error.Code, Status: geminiResp.Error.Status, Message: geminiResp.Error.Message}
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mouleshgs/onboardX/config"
)

// Assistant is the text-in/text-out boundary to the external
// retrieval-augmented chat service. The core knows nothing about
// embeddings or vector search; it ships a question out and an answer
// back.
type Assistant struct {
	url        string
	httpClient *http.Client
}

type assistantRequest struct {
	Query string `json:"query"`
}

type assistantResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

func NewAssistant(cfg *config.AssistantConfig) *Assistant {
	return &Assistant{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Query forwards a question to the assistant service.
func (a *Assistant) Query(ctx context.Context, query string) (string, error) {
	if a == nil || a.url == "" {
		return "", ErrUnavailable
	}

	data, err := json.Marshal(assistantRequest{Query: query})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Op: "assistant query", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{Op: "assistant query", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Op: "assistant query", Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	var result assistantResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &UpstreamError{Op: "assistant query", Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if result.Error != "" {
		return "", &UpstreamError{Op: "assistant query", Err: fmt.Errorf("%s", result.Error)}
	}
	return result.Answer, nil
}

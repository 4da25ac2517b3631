package opqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a non-2xx response from the sync API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sync API error (%d): %s", e.StatusCode, e.Message)
}

// HTTPSender delivers operations to the server's sync API.
type HTTPSender struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewHTTPSender creates a sender for the given server base URL and bearer
// token.
func NewHTTPSender(baseURL, token string) *HTTPSender {
	return &HTTPSender{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Apply sends POST /api/v1/sync/operations with the operation as body.
// Any transport error or non-200 status is returned as-is; the queue
// treats every error as retryable.
func (s *HTTPSender) Apply(ctx context.Context, op Operation) error {
	bodyBytes, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/sync/operations", s.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return nil
}

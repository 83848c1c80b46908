// Package extract calls the external extraction service that turns quiz
// images into structured questions.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quizlink-service/internal/domain"
)

const defaultTimeout = 60 * time.Second

// Client is an HTTP implementation of app.Extractor. Every failure mode of
// the upstream (network, timeout, non-2xx, malformed body) surfaces as an
// upstream_unavailable error; callers treat the output as untrusted either
// way.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type extractRequest struct {
	ImageRef string `json:"imageRef"`
}

type extractResponse struct {
	Questions []domain.ExtractedQuestion `json:"questions"`
}

func (c *Client) Extract(ctx context.Context, imageRef string) ([]domain.ExtractedQuestion, error) {
	payload, err := json.Marshal(extractRequest{ImageRef: imageRef})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrExtractorUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrExtractorUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.KindUpstreamUnavailable,
			fmt.Sprintf("extraction service returned status %d", resp.StatusCode))
	}

	var out extractResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, domain.NewError(domain.KindUpstreamUnavailable, "extraction service returned a malformed body")
	}
	return out.Questions, nil
}

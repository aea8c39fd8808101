package freightcom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the Freightcom v2 API host.
const DefaultBaseURL = "https://external-api.freightcom.com"

// HTTPAPIClient calls the Freightcom REST API.
type HTTPAPIClient struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// NewHTTPAPIClient creates an HTTP client.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 500 * time.Millisecond
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout == 0 {
		pollTimeout = 20 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPAPIClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
	}
}

// GetRates submits the request with POST /rate, then polls
// GET /rate/{request_id} until the rates are complete.
func (c *HTTPAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	var submitted rateRequestResponse
	if err := c.do(ctx, http.MethodPost, "/rate", req, &submitted); err != nil {
		return nil, err
	}
	if submitted.RequestID == "" {
		return nil, &APIError{Status: http.StatusOK, Code: "PARSE_ERROR", Message: "missing request_id"}
	}
	return c.pollRates(ctx, submitted.RequestID)
}

func (c *HTTPAPIClient) pollRates(ctx context.Context, requestID string) (*RatesResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	path := "/rate/" + requestID
	for {
		var result RatesResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, &APIError{Code: "TIMEOUT", Message: "rate request timed out waiting for results"}
			}
			return nil, err
		}

		switch result.Status {
		case "complete":
			return &result, nil
		case "error":
			return nil, &APIError{Status: http.StatusOK, Code: "RATE_ERROR", Message: result.Error}
		case "pending", "":
		default:
			return nil, &APIError{Status: http.StatusOK, Code: "UNKNOWN_STATUS", Message: fmt.Sprintf("unknown rate status %q", result.Status)}
		}

		select {
		case <-ctx.Done():
			return nil, &APIError{Code: "TIMEOUT", Message: "rate request timed out waiting for results"}
		case <-ticker.C:
		}
	}
}

func (c *HTTPAPIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Code: "HTTP_TRANSPORT", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return parseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Status: resp.StatusCode, Code: "PARSE_ERROR", Message: err.Error()}
	}
	return nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.Status = resp.StatusCode
		return &apiErr
	}

	var simple struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := string(body)
	if err := json.Unmarshal(body, &simple); err == nil {
		if simple.Message != "" {
			msg = simple.Message
		}
		if simple.Error != "" {
			msg = simple.Error
		}
	}
	return &APIError{Status: resp.StatusCode, Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Message: msg}
}

var _ APIClient = (*HTTPAPIClient)(nil)

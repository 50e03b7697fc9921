package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseSize caps how much of a service response is read.
const maxResponseSize = 8 << 20

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	URL        string
	APIKey     string
	Version    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPClient talks to the assistant service's v2 REST API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	version    string
	logger     *slog.Logger
}

// Ensure HTTPClient implements Assistant.
var _ Assistant = (*HTTPClient)(nil)

// NewHTTPClient creates a new client for the assistant service.
func NewHTTPClient(cfg ClientConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		version:    cfg.Version,
		logger:     logger.With("component", "assistant_client"),
	}
}

type messageBody struct {
	Input   MessageInput    `json:"input"`
	Context json.RawMessage `json:"context,omitempty"`
}

// Message submits one turn to /v2/assistants/{id}/sessions/{sid}/message.
func (c *HTTPClient) Message(ctx context.Context, req MessageRequest) (json.RawMessage, error) {
	if req.AssistantID == "" || req.SessionID == "" {
		return nil, &RemoteError{
			StatusCode: http.StatusBadRequest,
			Body:       errorBody("Missing required parameters: assistant_id, session_id", http.StatusBadRequest),
		}
	}
	path := fmt.Sprintf("/v2/assistants/%s/sessions/%s/message",
		url.PathEscape(req.AssistantID), url.PathEscape(req.SessionID))
	return c.post(ctx, path, messageBody{Input: req.Input, Context: req.Context})
}

// CreateSession opens a session through /v2/assistants/{id}/sessions.
func (c *HTTPClient) CreateSession(ctx context.Context, assistantID string) (json.RawMessage, error) {
	if assistantID == "" {
		return nil, &RemoteError{
			StatusCode: http.StatusBadRequest,
			Body:       errorBody("Missing required parameters: assistant_id", http.StatusBadRequest),
		}
	}
	path := fmt.Sprintf("/v2/assistants/%s/sessions", url.PathEscape(assistantID))
	return c.post(ctx, path, nil)
}

func (c *HTTPClient) endpoint(path string) string {
	q := url.Values{}
	q.Set("version", c.version)
	return c.baseURL + path + "?" + q.Encode()
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("assistant: marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("assistant: creating request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpRequest.SetBasicAuth("apikey", c.apiKey)
	}

	start := time.Now()
	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		c.logger.Warn("Assistant request failed", "path", path, "error", err)
		return nil, &RemoteError{
			Body: errorBody(err.Error(), http.StatusInternalServerError),
			Err:  err,
		}
	}
	defer httpResponse.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseSize))
	if err != nil {
		return nil, &RemoteError{
			StatusCode: httpResponse.StatusCode,
			Body:       errorBody("failed to read assistant response", httpResponse.StatusCode),
			Err:        err,
		}
	}

	c.logger.Debug("Assistant request completed",
		"path", path,
		"status", httpResponse.StatusCode,
		"duration", time.Since(start),
	)

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		if !json.Valid(data) {
			data = errorBody(strings.TrimSpace(string(data)), httpResponse.StatusCode)
		}
		return nil, &RemoteError{StatusCode: httpResponse.StatusCode, Body: data}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return data, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openrouter implements the client for the OpenRouter API.
//
// OpenRouter aggregates many LLM providers behind a single OpenAI-style
// API. This package covers the two endpoints parley needs: the model
// catalog and non-streaming chat completions.
package openrouter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Configuration constants for the OpenRouter API.
const (
	// DefaultBaseURL is the base URL for the OpenRouter API.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for
	// transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// maxResponseSize caps response bodies to keep a misbehaving server
	// from exhausting memory.
	maxResponseSize = 10 * 1024 * 1024
)

// Shared transport with connection pooling for all OpenRouter requests.
// Each client carries its own http.Client over it so WithTimeout applies
// per client.
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("OpenRouter API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired
	// API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account has insufficient
	// credits.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// APIError represents an error response from the OpenRouter API.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("OpenRouter error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("OpenRouter error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// REQUEST AND RESPONSE TYPES
// =============================================================================

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", or "system"
	Content string `json:"content"`
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatResponse represents a response from the chat completions endpoint.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Content returns the content of the first choice, or "".
func (r *ChatResponse) Content() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// Model represents one entry in the aggregator's model catalog.
type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
}

// modelsResponse is the wire shape of the models endpoint.
type modelsResponse struct {
	Data []Model `json:"data"`
}

// apiErrorResponse represents an error response body.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client communicates with the OpenRouter API.
type Client struct {
	apiKey     string
	baseURL    string
	maxRetries int
	httpClient *http.Client
	siteURL    string
	siteName   string
}

// NewClient creates a client with the given API key.
//
// The key format is "sk-or-..." as issued by OpenRouter. An empty key still
// yields a usable client; requests fail with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		maxRetries: DefaultMaxRetries,
		httpClient: &http.Client{Transport: sharedTransport, Timeout: DefaultTimeout},
		siteURL:    "https://parley.local",
		siteName:   "parley",
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient = &http.Client{Transport: sharedTransport, Timeout: timeout}
	return c
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	c.maxRetries = maxRetries
	return c
}

// IsConfigured reports whether the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// KeyFingerprint returns a short fingerprint of the API key for display
// and logging. The key itself never appears in logs.
func (c *Client) KeyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

// setHeaders applies auth and attribution headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", c.siteURL)
	req.Header.Set("X-Title", c.siteName)
}

// =============================================================================
// CHAT
// =============================================================================

// Chat sends a non-streaming chat completion request, retrying transient
// failures with exponential backoff.
func (c *Client) Chat(ctx context.Context, model string, messages []ChatMessage) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	url := c.baseURL + "/chat/completions"
	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		response, err := c.doChat(ctx, url, reqBody)
		if err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return response, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return nil, errors.New("max retries exceeded")
}

// doChat performs a single HTTP request to the chat completions endpoint.
func (c *Client) doChat(ctx context.Context, requestURL string, reqBody ChatRequest) (*ChatResponse, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &chatResp, nil
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// ListModels retrieves the model catalog.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var models modelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}
	return models.Data, nil
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, maxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == maxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", maxResponseSize)
	}
	return body, nil
}

// handleErrorResponse maps an error response to a typed error.
func handleErrorResponse(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		orErr := &APIError{
			Code:    apiErr.Error.Code,
			Message: apiErr.Error.Message,
			Status:  statusCode,
		}

		switch statusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, orErr.Message)
		case http.StatusPaymentRequired:
			return fmt.Errorf("%w: %s", ErrInsufficientCredits, orErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrModelNotFound, orErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, orErr.Message)
		default:
			return orErr
		}
	}

	// Unparseable error body: fall back to status-based errors with the
	// raw body as context.
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrAuthFailed
	case http.StatusPaymentRequired:
		return ErrInsufficientCredits
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &APIError{
			Message: strings.TrimSpace(string(body)),
			Status:  statusCode,
		}
	}
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return false
}

// backoff returns the delay before the next retry attempt.
func backoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

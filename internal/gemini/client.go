// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini implements the client for the Google Generative Language
// API (the first-party backend).
//
// Unlike the aggregator, this API takes structured content parts, which is
// what lets parley send an inline file attachment alongside the prompt.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Configuration constants for the Generative Language API.
const (
	// DefaultBaseURL is the base URL for the API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// maxResponseSize caps response bodies.
	maxResponseSize = 10 * 1024 * 1024
)

var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	Timeout: DefaultTimeout,
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("Gemini API key not configured")

	// ErrNoCandidates indicates the API returned no response candidates,
	// typically due to safety filtering.
	ErrNoCandidates = errors.New("no response candidates")
)

// APIError represents an error response from the API.
type APIError struct {
	StatusText string
	Message    string
	HTTPStatus int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusText != "" {
		return fmt.Sprintf("Gemini error [%s] (HTTP %d): %s", e.StatusText, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("Gemini error (HTTP %d): %s", e.HTTPStatus, e.Message)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// Content is one turn of a conversation on the wire.
type Content struct {
	Role  string `json:"role,omitempty"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// Part is a single content part: text or inline binary data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64-encoded file content.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// generateRequest is the request body for generateContent.
type generateRequest struct {
	Contents []Content `json:"contents"`
}

// generateResponse is the response body for generateContent.
type generateResponse struct {
	Candidates []struct {
		Content      Content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *apiErrorBody `json:"error"`
}

// apiErrorBody is the error envelope the API wraps failures in.
type apiErrorBody struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Response is the parsed result of a generate call.
type Response struct {
	Text         string
	FinishReason string
	PromptTokens int
	OutputTokens int
}

// =============================================================================
// CLIENT
// =============================================================================

// Client communicates with the Generative Language API.
type Client struct {
	apiKey  string
	baseURL string
}

// NewClient creates a client with the given API key. An empty key still
// yields a usable client; requests fail with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// IsConfigured reports whether the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Generate sends a conversation to the named model and returns the first
// candidate. model is the bare model name without a provider prefix, e.g.
// "gemini-2.0-flash".
func (c *Client) Generate(ctx context.Context, model string, contents []Content) (*Response, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)

	bodyBytes, err := json.Marshal(generateRequest{Contents: contents})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{
				Message:    strings.TrimSpace(string(body)),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// The API wraps failures in an error envelope even on some 200s.
	if gr.Error != nil {
		return nil, &APIError{
			StatusText: gr.Error.Status,
			Message:    gr.Error.Message,
			HTTPStatus: resp.StatusCode,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Message:    strings.TrimSpace(string(body)),
			HTTPStatus: resp.StatusCode,
		}
	}
	if len(gr.Candidates) == 0 {
		return nil, ErrNoCandidates
	}

	cand := gr.Candidates[0]
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		text.WriteString(part.Text)
	}

	return &Response{
		Text:         text.String(),
		FinishReason: cand.FinishReason,
		PromptTokens: gr.UsageMetadata.PromptTokenCount,
		OutputTokens: gr.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// TextPart builds a text content part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// FilePart builds an inline data part from base64-encoded content.
func FilePart(mimeType, base64Data string) Part {
	return Part{InlineData: &InlineData{MimeType: mimeType, Data: base64Data}}
}

// UserContent wraps parts as a user turn.
func UserContent(parts ...Part) Content {
	return Content{Role: "user", Parts: parts}
}

// ModelContent wraps text as a model turn.
func ModelContent(text string) Content {
	return Content{Role: "model", Parts: []Part{{Text: text}}}
}

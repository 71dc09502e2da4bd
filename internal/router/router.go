// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router dispatches outgoing prompts to the right provider and
// normalizes what comes back.
//
// The model ID's provider prefix decides the path: "googleai/" goes to the
// first-party Generative Language API, "openrouter/" goes to the
// aggregator. Anything else fails before any network traffic. Both paths
// collapse to a Reply carrying plain response text; provider failures
// surface as typed errors the UI can render uniformly.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/parley/internal/gemini"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/openrouter"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the provider for the requested model has
	// no API key.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrUnsupportedProvider indicates the model ID carries an unknown
	// provider prefix. Returned before any I/O.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrUnsupportedInput indicates the request shape is not supported on
	// the chosen path. The aggregator path cannot carry file attachments.
	ErrUnsupportedInput = errors.New("unsupported input for this provider")
)

// ProviderError represents an upstream failure with enough context to show
// the user which model failed and why.
type ProviderError struct {
	ModelID string
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s failed (HTTP %d): %s", e.ModelID, e.Status, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.ModelID, e.Message)
}

// Unwrap returns the underlying provider error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ParseError indicates the provider returned a success status with an
// unusable body.
type ParseError struct {
	ModelID string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("unusable response from %s: %v", e.ModelID, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// =============================================================================
// REQUEST AND REPLY
// =============================================================================

// Request is one outgoing prompt.
type Request struct {
	// ModelID is the provider-qualified model, e.g.
	// "googleai/gemini-2.0-flash".
	ModelID string
	// Prompt is the user's message text.
	Prompt string
	// History is the prior conversation, oldest first. Pending
	// placeholders and failed turns must be filtered out by the caller.
	History []*model.Message
	// Attachment is an optional inline file. Only the first-party path
	// accepts one.
	Attachment *model.Attachment
}

// Reply is the normalized result of a successful turn.
type Reply struct {
	// Text is the model's response.
	Text string
	// PromptTokens and OutputTokens are usage figures when the provider
	// reports them, zero otherwise.
	PromptTokens int
	OutputTokens int
}

// =============================================================================
// ROUTER
// =============================================================================

// Router sends prompts to whichever backend the model ID names.
type Router struct {
	gemini     *gemini.Client
	openrouter *openrouter.Client
}

// New creates a router over the two provider clients. Either client may be
// unconfigured; requests for that provider fail with ErrNotConfigured.
func New(geminiClient *gemini.Client, openrouterClient *openrouter.Client) *Router {
	return &Router{
		gemini:     geminiClient,
		openrouter: openrouterClient,
	}
}

// SetOpenRouterClient swaps the aggregator client, e.g. after a key change.
func (r *Router) SetOpenRouterClient(client *openrouter.Client) {
	r.openrouter = client
}

// Send routes the request by provider prefix and normalizes the result.
// Unknown prefixes fail before any network traffic.
func (r *Router) Send(ctx context.Context, req Request) (*Reply, error) {
	provider, rest, ok := model.SplitModelID(req.ModelID)
	if !ok {
		return nil, fmt.Errorf("%w: model id %q has no provider prefix", ErrUnsupportedProvider, req.ModelID)
	}

	switch provider {
	case model.ProviderGoogle:
		return r.sendGemini(ctx, req, rest)
	case model.ProviderOpenRouter:
		return r.sendOpenRouter(ctx, req, rest)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}

// =============================================================================
// FIRST-PARTY PATH
// =============================================================================

func (r *Router) sendGemini(ctx context.Context, req Request, modelName string) (*Reply, error) {
	if r.gemini == nil || !r.gemini.IsConfigured() {
		return nil, fmt.Errorf("%w: Gemini API key missing", ErrNotConfigured)
	}

	contents := make([]gemini.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		switch msg.Sender {
		case model.SenderUser:
			parts := []gemini.Part{gemini.TextPart(msg.Text)}
			if msg.File != nil {
				parts = append(parts, gemini.FilePart(msg.File.MimeType, msg.File.Data))
			}
			contents = append(contents, gemini.UserContent(parts...))
		case model.SenderAI:
			contents = append(contents, gemini.ModelContent(msg.Text))
		}
	}

	parts := []gemini.Part{gemini.TextPart(req.Prompt)}
	if req.Attachment != nil {
		parts = append(parts, gemini.FilePart(req.Attachment.MimeType, req.Attachment.Data))
	}
	contents = append(contents, gemini.UserContent(parts...))

	resp, err := r.gemini.Generate(ctx, modelName, contents)
	if err != nil {
		return nil, r.wrapGeminiError(req.ModelID, err)
	}

	return &Reply{
		Text:         resp.Text,
		PromptTokens: resp.PromptTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

func (r *Router) wrapGeminiError(modelID string, err error) error {
	if errors.Is(err, gemini.ErrNotConfigured) {
		return fmt.Errorf("%w: Gemini API key missing", ErrNotConfigured)
	}

	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			ModelID: modelID,
			Status:  apiErr.HTTPStatus,
			Message: apiErr.Message,
			Err:     err,
		}
	}
	if errors.Is(err, gemini.ErrNoCandidates) {
		return &ParseError{ModelID: modelID, Err: err}
	}

	logging.WithError(err).WithField("model", modelID).Warn("gemini request failed")
	return &ProviderError{ModelID: modelID, Message: err.Error(), Err: err}
}

// =============================================================================
// AGGREGATOR PATH
// =============================================================================

func (r *Router) sendOpenRouter(ctx context.Context, req Request, modelName string) (*Reply, error) {
	// The aggregator's chat endpoint takes plain text only.
	if req.Attachment != nil {
		return nil, fmt.Errorf("%w: file attachments require a first-party model", ErrUnsupportedInput)
	}

	if r.openrouter == nil || !r.openrouter.IsConfigured() {
		return nil, fmt.Errorf("%w: aggregator API key missing", ErrNotConfigured)
	}

	messages := make([]openrouter.ChatMessage, 0, len(req.History)+1)
	for _, msg := range req.History {
		switch msg.Sender {
		case model.SenderUser:
			messages = append(messages, openrouter.UserMessage(msg.Text))
		case model.SenderAI:
			messages = append(messages, openrouter.AssistantMessage(msg.Text))
		}
	}
	messages = append(messages, openrouter.UserMessage(req.Prompt))

	resp, err := r.openrouter.Chat(ctx, modelName, messages)
	if err != nil {
		return nil, r.wrapOpenRouterError(req.ModelID, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ParseError{ModelID: req.ModelID, Err: errors.New("response has no choices")}
	}

	return &Reply{
		Text:         resp.Content(),
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (r *Router) wrapOpenRouterError(modelID string, err error) error {
	if errors.Is(err, openrouter.ErrNotConfigured) {
		return fmt.Errorf("%w: aggregator API key missing", ErrNotConfigured)
	}

	var apiErr *openrouter.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			ModelID: modelID,
			Status:  apiErr.Status,
			Message: apiErr.Message,
			Err:     err,
		}
	}

	// Sentinel errors (auth, credits, rate limit, missing model) carry a
	// readable message already.
	logging.WithError(err).WithField("model", modelID).Warn("aggregator request failed")
	return &ProviderError{ModelID: modelID, Message: err.Error(), Err: err}
}

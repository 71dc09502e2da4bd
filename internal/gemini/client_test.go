// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateSuccess(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "gk-test" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Hello "}, {"text": "there"}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 2}
		}`))
	}))
	defer server.Close()

	client := NewClient("gk-test").WithBaseURL(server.URL)
	resp, err := client.Generate(context.Background(), "gemini-2.0-flash",
		[]Content{UserContent(TextPart("hi"))})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "Hello there" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.PromptTokens != 4 || resp.OutputTokens != 2 {
		t.Errorf("usage = %d/%d", resp.PromptTokens, resp.OutputTokens)
	}

	var req struct {
		Contents []Content `json:"contents"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "hi" {
		t.Errorf("request contents = %+v", req.Contents)
	}
}

func TestGenerateWithAttachment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Contents []Content `json:"contents"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("request body: %v", err)
		}
		parts := req.Contents[0].Parts
		if len(parts) != 2 {
			t.Fatalf("parts = %d, want 2", len(parts))
		}
		if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/png" {
			t.Errorf("inline data = %+v", parts[1].InlineData)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"a picture"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	client := NewClient("gk-test").WithBaseURL(server.URL)
	resp, err := client.Generate(context.Background(), "gemini-2.0-flash",
		[]Content{UserContent(TextPart("what is this?"), FilePart("image/png", "aWJvcg=="))})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "a picture" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	_, err := NewClient("").Generate(context.Background(), "m", nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestGenerateErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"status":"INVALID_ARGUMENT","message":"API key not valid"}}`))
	}))
	defer server.Close()

	client := NewClient("gk-bad").WithBaseURL(server.URL)
	_, err := client.Generate(context.Background(), "gemini-2.0-flash",
		[]Content{UserContent(TextPart("hi"))})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusText != "INVALID_ARGUMENT" || !strings.Contains(apiErr.Message, "API key not valid") {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestGenerateNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	client := NewClient("gk-test").WithBaseURL(server.URL)
	_, err := client.Generate(context.Background(), "gemini-2.0-flash",
		[]Content{UserContent(TextPart("hi"))})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("status = %d", apiErr.HTTPStatus)
	}
	if !strings.Contains(apiErr.Message, "upstream unavailable") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client := NewClient("gk-test").WithBaseURL(server.URL)
	_, err := client.Generate(context.Background(), "gemini-2.0-flash",
		[]Content{UserContent(TextPart("hi"))})
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("err = %v, want ErrNoCandidates", err)
	}
}

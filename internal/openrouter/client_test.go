// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

func chatOKBody() []byte {
	return []byte(`{
		"id": "test-id",
		"model": "mistralai/mistral-7b-instruct",
		"choices": [{
			"message": {"role": "assistant", "content": "test response"},
			"finish_reason": "stop"
		}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
	}`)
}

func TestChatSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+testKey {
			t.Errorf("auth header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(chatOKBody())
	}))
	defer server.Close()

	client := NewClient(testKey).WithBaseURL(server.URL)
	resp, err := client.Chat(context.Background(), "mistralai/mistral-7b-instruct",
		[]ChatMessage{UserMessage("hello")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content() != "test response" {
		t.Errorf("content = %q", resp.Content())
	}
	if resp.Usage.TotalTokens != 30 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
}

func TestWithTimeoutAppliesToRequests(t *testing.T) {
	client := NewClient(testKey)
	if got := client.httpClient.Timeout; got != DefaultTimeout {
		t.Errorf("default timeout = %v, want %v", got, DefaultTimeout)
	}

	client.WithTimeout(90 * time.Second)
	if got := client.httpClient.Timeout; got != 90*time.Second {
		t.Errorf("timeout = %v, want 90s", got)
	}
	if client.httpClient.Transport != http.RoundTripper(sharedTransport) {
		t.Error("client does not share the pooled transport")
	}
}

func TestChatNotConfigured(t *testing.T) {
	client := NewClient("")
	_, err := client.Chat(context.Background(), "any", []ChatMessage{UserMessage("hi")})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	_, err = client.ListModels(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ListModels err = %v, want ErrNotConfigured", err)
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"auth failed", http.StatusUnauthorized, `{"error":{"code":"invalid_key","message":"bad key"}}`, ErrAuthFailed},
		{"insufficient credits", http.StatusPaymentRequired, `{"error":{"message":"out of credits"}}`, ErrInsufficientCredits},
		{"model not found", http.StatusNotFound, `{"error":{"message":"no such model"}}`, ErrModelNotFound},
		{"auth failed unparseable body", http.StatusUnauthorized, `nope`, ErrAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(testKey).WithBaseURL(server.URL).WithMaxRetries(1)
			_, err := client.Chat(context.Background(), "m", []ChatMessage{UserMessage("hi")})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatErrorBodyExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"bad_request","message":"temperature out of range"}}`))
	}))
	defer server.Close()

	client := NewClient(testKey).WithBaseURL(server.URL).WithMaxRetries(1)
	_, err := client.Chat(context.Background(), "m", []ChatMessage{UserMessage("hi")})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != "temperature out of range" || apiErr.Status != http.StatusBadRequest {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestChatRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":{"message":"upstream down"}}`))
			return
		}
		w.Write(chatOKBody())
	}))
	defer server.Close()

	client := NewClient(testKey).WithBaseURL(server.URL)
	resp, err := client.Chat(context.Background(), "m", []ChatMessage{UserMessage("hi")})
	if err != nil {
		t.Fatalf("Chat after retries: %v", err)
	}
	if resp.Content() != "test response" {
		t.Errorf("content = %q", resp.Content())
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestChatDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"malformed"}}`))
	}))
	defer server.Close()

	client := NewClient(testKey).WithBaseURL(server.URL)
	_, err := client.Chat(context.Background(), "m", []ChatMessage{UserMessage("hi")})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestChatContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write(chatOKBody())
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewClient(testKey).WithBaseURL(server.URL).WithMaxRetries(1)
	_, err := client.Chat(ctx, "m", []ChatMessage{UserMessage("hi")})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"data":[
			{"id":"mistralai/mistral-7b-instruct","name":"Mistral 7B Instruct","context_length":32768},
			{"id":"meta-llama/llama-3-8b-instruct","name":"Llama 3 8B","context_length":8192}
		]}`))
	}))
	defer server.Close()

	client := NewClient(testKey).WithBaseURL(server.URL)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("models = %d, want 2", len(models))
	}
	if models[0].ID != "mistralai/mistral-7b-instruct" || models[0].ContextLength != 32768 {
		t.Errorf("models[0] = %+v", models[0])
	}
}

func TestKeyFingerprint(t *testing.T) {
	client := NewClient(testKey)
	fp := client.KeyFingerprint()
	if len(fp) != 8 {
		t.Errorf("fingerprint length = %d, want 8 hex chars", len(fp))
	}
	if NewClient("").KeyFingerprint() != "none" {
		t.Error("empty key should fingerprint as none")
	}
}

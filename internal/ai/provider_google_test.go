package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGoogleProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing or wrong API key header")
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "You write quizzes." {
			t.Errorf("system instruction = %+v", req.SystemInstruction)
		}
		if len(req.Contents) != 2 || req.Contents[1].Role != "model" {
			t.Errorf("contents = %+v, want user then model", req.Contents)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("generationConfig = %+v, want JSON mime type", req.GenerationConfig)
		}

		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "{\"questions\":"}, {"text": "[]}"}]}}],
			"usageMetadata": {"promptTokenCount": 8, "candidatesTokenCount": 12}
		}`))
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You write quizzes."},
			{Role: "user", Content: "Fractions"},
			{Role: "assistant", Content: "Sure"},
		},
		JSON: true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != `{"questions":[]}` {
		t.Errorf("content = %q, want joined parts", resp.Content)
	}
	if resp.Model != "gemini-2.5-flash" {
		t.Errorf("model = %q, want gemini-2.5-flash", resp.Model)
	}
	if resp.InputTokens != 8 || resp.OutputTokens != 12 {
		t.Errorf("tokens = %d/%d, want 8/12", resp.InputTokens, resp.OutputTokens)
	}
}

func TestGoogleProvider_CustomModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/models/gemini-2.5-pro:") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL), WithGoogleModel("gemini-2.5-pro"))
	if _, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
}

func TestGoogleProvider_Complete_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"quota", http.StatusTooManyRequests, `{"error":{"message":"quota"}}`},
		{"no candidates", http.StatusOK, `{"candidates":[]}`},
		{"malformed", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))
			if _, err := provider.Complete(context.Background(), CompletionRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			}); err == nil {
				t.Fatal("Complete() should return error")
			}
		})
	}
}

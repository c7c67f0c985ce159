package ai

import (
	"context"
	"sync"
)

// MockProvider is a test double for AI providers.
type MockProvider struct {
	Response string
	Err      error

	mu          sync.Mutex
	calls       int
	lastRequest *CompletionRequest
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	m.lastRequest = &req
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}
	return CompletionResponse{
		Content:      m.Response,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(m.Response),
	}, nil
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// BlockingProvider never answers until its context is done. Used to exercise timeouts.
type BlockingProvider struct{}

func (BlockingProvider) Complete(ctx context.Context, _ CompletionRequest) (CompletionResponse, error) {
	<-ctx.Done()
	return CompletionResponse{}, ctx.Err()
}

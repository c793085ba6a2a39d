package mock

import "context"

// MockCompleter is a test double for ai.Completer.
// It allows custom behavior injection via function fields.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete returns Response.
	CompleteFunc func(ctx context.Context, systemPrompt, userContent string, jsonMode bool) (string, error)

	// Response is returned when CompleteFunc is nil.
	Response string

	callCount int
}

// NewMockCompleter creates a mock completer returning the given response.
func NewMockCompleter(response string) *MockCompleter {
	return &MockCompleter{Response: response}
}

// Complete returns the configured response or delegates to CompleteFunc.
func (m *MockCompleter) Complete(ctx context.Context, systemPrompt, userContent string, jsonMode bool) (string, error) {
	m.callCount++

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, userContent, jsonMode)
	}
	return m.Response, nil
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	return m.callCount
}

// Reset clears the call count and any injected behavior.
func (m *MockCompleter) Reset() {
	m.callCount = 0
	m.CompleteFunc = nil
	m.Response = ""
}

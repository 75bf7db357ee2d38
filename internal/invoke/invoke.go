// Package invoke is the model-invocation boundary: one call, one
// attempt against an LLM endpoint. Retry policy belongs to the caller
// (the agent harness), never to the client.
package invoke

import (
	"context"
	"sync"
)

// ToolSpec describes a tool offered to the model for the invocation.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Request is a single model invocation.
type Request struct {
	Model        string
	System       string
	User         string
	Tools        []ToolSpec
	OutputSchema string // schema name; non-empty requests JSON output
	Temperature  *float64
	MaxTokens    *int
}

// Response is the model's reply to one invocation.
type Response struct {
	Content      string
	Model        string
	PromptTokens int
	OutputTokens int
}

// Client invokes a model endpoint exactly once per call. Implementations
// must be safe for concurrent use.
type Client interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// Mock is a scriptable Client for tests and dry runs. Fn receives each
// request; when Fn is nil the mock echoes an empty JSON object.
type Mock struct {
	Fn func(ctx context.Context, req Request) (*Response, error)

	mu    sync.Mutex
	calls int
}

// Invoke counts the call and delegates to Fn.
func (m *Mock) Invoke(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Fn == nil {
		return &Response{Content: "{}"}, nil
	}
	return m.Fn(ctx, req)
}

// Calls returns how many invocations the mock has served.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

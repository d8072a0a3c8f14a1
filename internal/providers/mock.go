package providers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const MockClientName = "mock"

// MockStep scripts one response of a MockClient. Exactly one of Content
// or Err should be set.
type MockStep struct {
	Content string
	Err     error
}

// MockClient is an LLMClient for testing. Responses are served from the
// scripted steps in order; once the script runs out the last step repeats.
type MockClient struct {
	Latency time.Duration
	Steps   []MockStep

	mu       sync.Mutex
	requests []*ChatRequest
}

// NewMockClient creates a mock that always returns content.
func NewMockClient(content string) *MockClient {
	return &MockClient{Steps: []MockStep{{Content: content}}}
}

// NewScriptedClient creates a mock serving the given steps in order.
func NewScriptedClient(steps ...MockStep) *MockClient {
	return &MockClient{Steps: steps}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat serves the next scripted step.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	c.mu.Lock()
	n := len(c.requests)
	c.requests = append(c.requests, req)
	step := MockStep{Content: "mock response"}
	if len(c.Steps) > 0 {
		if n < len(c.Steps) {
			step = c.Steps[n]
		} else {
			step = c.Steps[len(c.Steps)-1]
		}
	}
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if step.Err != nil {
		return nil, step.Err
	}

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	completionTokens := len(step.Content) / 4

	return &ChatResult{
		Content:          step.Content,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		CostUSD:          0.001,
		ExecutionTime:    time.Since(start),
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		RequestID:        fmt.Sprintf("mock-%d", n+1),
	}, nil
}

// RequestCount returns the number of requests received.
func (c *MockClient) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Requests returns a copy of the received requests, in order.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)

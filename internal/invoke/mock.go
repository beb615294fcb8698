package invoke

import (
	"context"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// Mock is an Invoker for testing.
type Mock struct {
	// Configurable behavior
	Latency      time.Duration
	Err          error
	FailAfter    int // fail requests after N successes (0 = never)
	ResponseText string
	Model        string

	// Captured state
	LastPrompt   string
	requestCount atomic.Int64
}

// NewMock returns a mock with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		Latency:      time.Millisecond,
		ResponseText: `{"status":"mock"}`,
		Model:        "mock-model",
	}
}

func (m *Mock) Name() string { return MockName }

// Invoke returns the scripted response, honoring Latency, Err and FailAfter.
func (m *Mock) Invoke(ctx context.Context, req *Request) (*Response, error) {
	n := m.requestCount.Add(1)
	m.LastPrompt = req.Prompt

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}
	if m.Err != nil && (m.FailAfter == 0 || n > int64(m.FailAfter)) {
		return nil, m.Err
	}
	return &Response{Text: m.ResponseText, Model: m.Model}, nil
}

// RequestCount returns the number of Invoke calls so far.
func (m *Mock) RequestCount() int64 { return m.requestCount.Load() }

// Package invoke sends the grounding prompt plus the source document to a
// vision-capable model and returns the raw text reply.
package invoke

import (
	"context"
	"errors"
)

// Classified invocation failures. The pipeline maps these onto the response
// envelope; none of them are retried at this layer.
var (
	// ErrUnavailable indicates missing or rejected credentials/configuration.
	ErrUnavailable = errors.New("model unavailable")
	// ErrEmptyResponse indicates a safety block or an empty completion,
	// distinct from a completion containing wrong or malformed JSON.
	ErrEmptyResponse = errors.New("model returned empty response")
	// ErrTransport indicates a network failure or remote 5xx/429.
	ErrTransport = errors.New("model transport error")
)

// Request is a single invocation: the assembled prompt and the source
// document in both original and rendered form.
type Request struct {
	Prompt string
	// PDF is the original document, uploaded by invokers that support
	// multi-modal file grounding.
	PDF []byte
	// PageImages are the rendered pages (PNG), used by invokers without a
	// document upload API.
	PageImages [][]byte
	RequestID  string
}

// Response is the raw model output.
type Response struct {
	Text  string
	Model string
}

// Invoker is the model boundary: prompt in, raw text out, or a classified
// failure. Implementations must release any uploaded artifacts on every
// exit path, success or failure.
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, req *Request) (*Response, error)
}

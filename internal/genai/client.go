// Package genai wraps the text-generation backend behind a small typed
// boundary. Every consumer treats the backend as an untrusted external
// function: responses may be malformed, rate limited, or absent, and all
// four failure kinds are recoverable at the call site.
package genai

import (
	"context"
	"fmt"
)

// Client is the interface to a text-generation capability.
type Client interface {
	// Generate sends a prompt (with optional system framing and schema
	// hint) and returns the raw model text or a typed *Error.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request describes one generation call.
type Request struct {
	// Prompt is the user-role prompt text.
	Prompt string

	// System is the optional role/system framing for the call.
	System string

	// SchemaHint, when non-empty, is appended to the prompt to constrain
	// the response to a structured format.
	SchemaHint string

	// MaxTokens bounds the response length. Zero means the client default.
	MaxTokens int
}

// Response is a successful generation result.
type Response struct {
	Text       string
	Model      string
	StopReason string
}

// FailKind classifies generation failures.
type FailKind string

const (
	// RateLimited means the backend rejected the call for quota reasons.
	RateLimited FailKind = "rate-limited"

	// Timeout means the call exceeded its deadline.
	Timeout FailKind = "timeout"

	// BackendError covers transport failures and 5xx responses.
	BackendError FailKind = "backend-error"

	// MalformedOutput means the backend answered but the payload could
	// not be decoded or was empty.
	MalformedOutput FailKind = "malformed-output"
)

// Error is the typed failure returned by generation clients.
type Error struct {
	Kind   FailKind
	Status int // HTTP status, when applicable
	Msg    string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("genai: %s (HTTP %d): %s", e.Kind, e.Status, e.Msg)
	}
	return fmt.Sprintf("genai: %s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a retry of the same call may succeed.
// Malformed output is retryable at this layer: regeneration is the
// standard recovery for non-conforming model text.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case RateLimited, Timeout, BackendError, MalformedOutput:
		return true
	}
	return false
}

package genai

import (
	"context"
	"sync"
)

// Compile-time interface check.
var _ Client = (*ScriptedClient)(nil)

// Step is one canned outcome for a ScriptedClient call.
type Step struct {
	Text string
	Err  error
}

// ScriptedClient replays a fixed sequence of outcomes, one per Generate
// call. Once the script is exhausted the last step repeats. Used by
// tests for everything above the HTTP layer.
type ScriptedClient struct {
	mu       sync.Mutex
	steps    []Step
	calls    int
	Requests []Request // every request received, in order
}

// NewScriptedClient creates a client that replays steps in order.
func NewScriptedClient(steps ...Step) *ScriptedClient {
	return &ScriptedClient{steps: steps}
}

// Generate returns the next scripted outcome.
func (s *ScriptedClient) Generate(_ context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	if len(s.steps) == 0 {
		return nil, &Error{Kind: BackendError, Msg: "scripted client has no steps"}
	}

	idx := s.calls
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	s.calls++

	step := s.steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}
	return &Response{Text: step.Text, Model: "scripted"}, nil
}

// Calls returns how many Generate calls have been made.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

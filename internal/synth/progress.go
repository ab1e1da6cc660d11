package synth

import "fmt"

// Status is the lifecycle of one progress step.
type Status string

const (
	StatusPending  Status = "pending"
	StatusWorking  Status = "working"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Event is one progress update from a running session.
type Event struct {
	State   State
	Round   int
	Expert  string // set for consultation events
	Status  Status
	Message string
}

// ProgressReporter emits session events through a buffered channel.
type ProgressReporter struct {
	ch chan Event
}

// NewProgressReporter creates a reporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{ch: make(chan Event, 64)}
}

// Emit sends an event without blocking. If the channel is full the
// event is dropped.
func (pr *ProgressReporter) Emit(ev Event) {
	select {
	case pr.ch <- ev:
	default:
	}
}

// Subscribe returns a read-only channel for consuming events.
func (pr *ProgressReporter) Subscribe() <-chan Event {
	return pr.ch
}

// Close closes the event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatEvent renders an event as a human-readable status line.
func FormatEvent(ev Event) string {
	subject := string(ev.State)
	if ev.Expert != "" {
		subject = ev.Expert
	}
	switch ev.Status {
	case StatusPending:
		return fmt.Sprintf("  ○ [round %d] %s (pending)", ev.Round, subject)
	case StatusWorking:
		return fmt.Sprintf("  ● [round %d] %s...", ev.Round, subject)
	case StatusComplete:
		return fmt.Sprintf("  ✓ [round %d] %s complete", ev.Round, subject)
	case StatusFailed:
		return fmt.Sprintf("  ✗ [round %d] %s failed: %s", ev.Round, subject, ev.Message)
	default:
		return fmt.Sprintf("  ? [round %d] %s", ev.Round, subject)
	}
}

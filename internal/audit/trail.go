// Package audit records everything a synthesis session did: every
// consultation, abstention, conflict resolution, and validation report,
// round by round, so an escalated or failed session can be reviewed
// after the fact.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/riverlab/indra/internal/confluence"
)

// Outcome is the terminal state of a session.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeEscalated Outcome = "escalated"
	OutcomeFailed    Outcome = "failed"
)

// Candidate is one expert's proposed value for a contested field.
type Candidate struct {
	Expert     string  `json:"expert"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Conflict records how one contested field was resolved during a merge.
type Conflict struct {
	Field      string      `json:"field"`
	Candidates []Candidate `json:"candidates"`

	// Resolution is "confidence", "authority", or "deferred". A deferred
	// conflict leaves the field unset for the next round.
	Resolution string `json:"resolution"`

	// Winner is the expert whose value was taken; empty when deferred.
	Winner string `json:"winner,omitempty"`
}

// Consultation records one expert's answer within a round.
type Consultation struct {
	Expert     string         `json:"expert"`
	Fields     map[string]any `json:"fields"`
	Rationale  string         `json:"rationale"`
	Confidence float64        `json:"confidence"`
	Trimmed    []string       `json:"trimmed,omitempty"`
	Duration   time.Duration  `json:"duration_ns"`
}

// Abstention records an expert that produced nothing usable in a round.
type Abstention struct {
	Expert string `json:"expert"`
	Reason string `json:"reason"`
}

// Round is the full record of one consult/merge/validate cycle.
type Round struct {
	Number        int                          `json:"number"`
	Consultations []Consultation               `json:"consultations"`
	Abstentions   []Abstention                 `json:"abstentions,omitempty"`
	Conflicts     []Conflict                   `json:"conflicts,omitempty"`
	Report        *confluence.ValidationReport `json:"validation,omitempty"`
	Snapshot      map[string]any               `json:"snapshot,omitempty"`
}

// Trail is the complete session record.
type Trail struct {
	SessionID string    `json:"session_id"`
	Purpose   string    `json:"purpose"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`

	Rounds []Round `json:"rounds"`

	// Attempt counts session-level restarts after round exhaustion.
	Attempt int `json:"attempt"`

	Outcome Outcome `json:"outcome,omitempty"`

	// Detail explains a non-accepted outcome.
	Detail string `json:"detail,omitempty"`

	// FinalConfig is the accepted configuration snapshot.
	FinalConfig map[string]any `json:"final_config,omitempty"`

	// ConfigPath is where the accepted YAML was written, if it was.
	ConfigPath string `json:"config_path,omitempty"`
}

// New starts a trail for a session.
func New(purpose string, now time.Time) *Trail {
	return &Trail{
		SessionID: uuid.NewString(),
		Purpose:   purpose,
		StartedAt: now,
		Attempt:   1,
	}
}

// AddRound appends a completed round record.
func (t *Trail) AddRound(r Round) {
	t.Rounds = append(t.Rounds, r)
}

// Finish stamps the terminal outcome.
func (t *Trail) Finish(outcome Outcome, detail string, now time.Time) {
	t.Outcome = outcome
	t.Detail = detail
	t.EndedAt = now
}

package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/riverlab/indra/internal/confluence"
	"github.com/riverlab/indra/internal/genai"
	"github.com/riverlab/indra/internal/intent"
)

const recommendationSchema = `Respond with JSON only, no prose, matching exactly:
{
  "fields": {"FIELD_NAME": "value"},
  "rationale": "one short paragraph explaining the choice",
  "confidence": 0.0
}
Only include fields you are authorized to set. Confidence is your honest
self-assessment between 0 and 1. If every field in your authority is
already settled and you have no objection, return an empty fields object.`

// Consultant runs the consultation protocol for a single expert.
type Consultant struct {
	client  genai.Client
	profile ExpertProfile
	catalog *confluence.ConstraintSet
	log     *slog.Logger
}

// ConsultantOption configures a Consultant.
type ConsultantOption func(*Consultant)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ConsultantOption {
	return func(c *Consultant) { c.log = log }
}

// NewConsultant binds an expert profile to a generation client.
func NewConsultant(client genai.Client, profile ExpertProfile, catalog *confluence.ConstraintSet, opts ...ConsultantOption) *Consultant {
	c := &Consultant{
		client:  client,
		profile: profile,
		catalog: catalog,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile returns the bound expert profile.
func (c *Consultant) Profile() ExpertProfile { return c.profile }

// Consult asks the expert for a recommendation given the session intent,
// the current configuration snapshot, and any validation feedback from
// the previous round. A malformed response gets one corrective retry;
// a second failure or a backend error returns an error, which the
// caller records as an abstention.
func (c *Consultant) Consult(ctx context.Context, it *intent.Intent, round int, snapshot map[string]any, feedback []confluence.RuleResult) (*Recommendation, error) {
	prompt := c.buildPrompt(it, snapshot, feedback)

	wire, err := c.extract(ctx, prompt)
	if err != nil {
		var gerr *genai.Error
		if !errors.As(err, &gerr) || gerr.Kind != genai.MalformedOutput {
			return nil, fmt.Errorf("panel: %s consultation: %w", c.profile.Name, err)
		}

		c.log.Warn("malformed recommendation, retrying with correction",
			"expert", c.profile.Name, "round", round, "error", err)
		corrective := prompt + "\n\nYour previous response could not be parsed: " + err.Error() +
			"\nRespond again with only the JSON object."
		wire, err = c.extract(ctx, corrective)
		if err != nil {
			return nil, fmt.Errorf("panel: %s consultation failed after corrective retry: %w", c.profile.Name, err)
		}
	}

	rec := &Recommendation{
		Expert:     c.profile.Name,
		Round:      round,
		Fields:     map[string]any{},
		Rationale:  strings.TrimSpace(wire.Rationale),
		Confidence: Confidence(wire.Confidence),
	}

	if !rec.Confidence.Valid() {
		c.log.Warn("confidence out of range, clamping",
			"expert", c.profile.Name, "confidence", wire.Confidence)
		rec.Confidence = rec.Confidence.Clamp()
	}

	// Authority is enforced here, not trusted to the prompt. Sorted so
	// the trimmed list is stable for audit comparison.
	names := make([]string, 0, len(wire.Fields))
	for name := range wire.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !c.profile.Authorized(name) {
			rec.Trimmed = append(rec.Trimmed, name)
			continue
		}
		rec.Fields[name] = wire.Fields[name]
	}
	if len(rec.Trimmed) > 0 {
		c.log.Warn("recommendation trimmed to authority",
			"expert", c.profile.Name, "trimmed", rec.Trimmed)
	}

	return rec, nil
}

func (c *Consultant) extract(ctx context.Context, prompt string) (*wireRecommendation, error) {
	resp, err := c.client.Generate(ctx, genai.Request{
		Prompt:     prompt,
		System:     c.profile.Framing,
		SchemaHint: recommendationSchema,
	})
	if err != nil {
		return nil, err
	}
	return genai.ParseJSON[wireRecommendation]([]byte(resp.Text))
}

func (c *Consultant) buildPrompt(it *intent.Intent, snapshot map[string]any, feedback []confluence.RuleResult) string {
	var b strings.Builder

	b.WriteString("Modeling purpose:\n")
	b.WriteString(it.RawPurpose)
	b.WriteString("\n\nStructured intent:\n")
	fmt.Fprintf(&b, "  location: %s\n", it.Location)
	if len(it.Variables) > 0 {
		fmt.Fprintf(&b, "  variables: %s\n", strings.Join(it.Variables, ", "))
	}
	if it.Span.Start != "" || it.Span.End != "" {
		fmt.Fprintf(&b, "  period: %s to %s\n", it.Span.Start, it.Span.End)
	}
	if it.Resolution.Spatial != "" {
		fmt.Fprintf(&b, "  spatial resolution: %s\n", it.Resolution.Spatial)
	}
	if it.Resolution.Temporal != "" {
		fmt.Fprintf(&b, "  temporal resolution: %s\n", it.Resolution.Temporal)
	}
	if it.PreferredModel != "" {
		fmt.Fprintf(&b, "  user-preferred model: %s\n", it.PreferredModel)
	}

	b.WriteString("\nYour authority covers these fields:\n")
	for _, name := range c.profile.Authority {
		spec, ok := c.catalog.Spec(name)
		if !ok {
			continue
		}
		if len(spec.Enum) > 0 {
			fmt.Fprintf(&b, "  %s: one of [%s]\n", name, strings.Join(spec.Enum, ", "))
		} else {
			fmt.Fprintf(&b, "  %s: %s\n", name, spec.Description)
		}
	}

	if len(snapshot) > 0 {
		b.WriteString("\nConfiguration settled so far:\n")
		settled, _ := json.MarshalIndent(snapshot, "", "  ")
		b.Write(settled)
		b.WriteString("\n")
	}

	if len(feedback) > 0 {
		b.WriteString("\nThe previous round's configuration failed validation. Address the violations that fall under your authority:\n")
		for _, row := range feedback {
			fmt.Fprintf(&b, "  %s: %s (%s)\n", row.Field, row.Rule, row.Detail)
		}
	}

	return b.String()
}

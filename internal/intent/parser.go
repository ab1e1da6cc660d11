package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/riverlab/indra/internal/genai"
)

// ParseError means a purpose could not be structured after the retry
// budget. Sessions fail fast on it; nothing downstream runs without an
// Intent.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("intent: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

const extractionSystem = `You extract structured modeling intent from a hydrologist's free-form request. You never invent details the request does not state. Fields you cannot determine stay empty.`

const extractionSchema = `Respond with JSON only, no prose, matching exactly:
{
  "location": "basin, gauge, or region named in the request",
  "variables": ["modeled variables of interest, e.g. streamflow"],
  "time_range": {"start": "", "end": ""},
  "resolution": {"spatial": "", "temporal": ""},
  "preferred_model": "model family only if the request names one",
  "residue": "any part of the request you could not structure"
}`

// wireIntent is the extraction payload shape. Kept separate from Intent
// so the model never controls RawPurpose or ParsedAt.
type wireIntent struct {
	Location       string     `json:"location"`
	Variables      []string   `json:"variables"`
	Span           TimeRange  `json:"time_range"`
	Resolution     Resolution `json:"resolution"`
	PreferredModel string     `json:"preferred_model"`
	Residue        string     `json:"residue"`
}

// Parser extracts an Intent from free-form purpose text. One corrective
// retry on malformed output, then a ParseError.
type Parser struct {
	client genai.Client
	log    *slog.Logger
	now    func() time.Time
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ParserOption {
	return func(p *Parser) { p.log = log }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) ParserOption {
	return func(p *Parser) { p.now = now }
}

// NewParser creates a Parser on top of a generation client.
func NewParser(client genai.Client, opts ...ParserOption) *Parser {
	p := &Parser{
		client: client,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts the Intent for a purpose. Empty purposes are rejected
// without a backend call. A malformed or incomplete extraction gets one
// corrective retry that echoes the problem back to the model; a second
// failure returns a ParseError.
func (p *Parser) Parse(ctx context.Context, purpose string) (*Intent, error) {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return nil, &ParseError{Reason: "purpose is empty"}
	}

	prompt := "Modeling request:\n" + purpose

	wire, err := p.extract(ctx, prompt)
	if err != nil {
		var gerr *genai.Error
		if !errors.As(err, &gerr) || gerr.Kind != genai.MalformedOutput {
			return nil, &ParseError{Reason: "generation backend failed", Err: err}
		}

		p.log.Warn("intent extraction malformed, retrying with correction", "error", err)
		corrective := prompt + "\n\nYour previous response could not be parsed: " + err.Error() +
			"\nRespond again with only the JSON object."
		wire, err = p.extract(ctx, corrective)
		if err != nil {
			return nil, &ParseError{Reason: "extraction failed after corrective retry", Err: err}
		}
	}

	it := &Intent{
		RawPurpose:     purpose,
		Location:       strings.TrimSpace(wire.Location),
		Variables:      wire.Variables,
		Span:           wire.Span,
		Resolution:     wire.Resolution,
		PreferredModel: strings.TrimSpace(wire.PreferredModel),
		Residue:        strings.TrimSpace(wire.Residue),
		ParsedAt:       p.now(),
	}
	if it.Location == "" && len(it.Variables) == 0 {
		return nil, &ParseError{Reason: "extraction yielded neither a location nor variables"}
	}

	p.log.Info("purpose parsed",
		"location", it.Location,
		"variables", len(it.Variables),
		"preferred_model", it.PreferredModel)
	return it, nil
}

func (p *Parser) extract(ctx context.Context, prompt string) (*wireIntent, error) {
	resp, err := p.client.Generate(ctx, genai.Request{
		Prompt:     prompt,
		System:     extractionSystem,
		SchemaHint: extractionSchema,
	})
	if err != nil {
		return nil, err
	}
	return genai.ParseJSON[wireIntent]([]byte(resp.Text))
}

// Package intent turns a free-form modeling purpose into a structured
// Intent via the generation backend. Extraction output is treated as
// untrusted: it is schema-parsed, retried once with a corrective prompt
// on malformed responses, and rejected with a typed ParseError after
// the retry budget.
package intent

import "time"

// TimeRange is the requested simulation span. Either bound may be empty
// when the purpose does not pin it down.
type TimeRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Resolution captures spatial/temporal resolution hints from the purpose.
type Resolution struct {
	Spatial  string `json:"spatial,omitempty"`
	Temporal string `json:"temporal,omitempty"`
}

// Intent is the immutable structured extraction of a modeling purpose.
// Created once per session and read by every expert; never mutated.
type Intent struct {
	// RawPurpose is the original user text, verbatim.
	RawPurpose string `json:"raw_purpose"`

	// Location is the target basin or gauge descriptor.
	Location string `json:"location"`

	// Variables are the modeled variables of interest (e.g. streamflow).
	Variables []string `json:"variables"`

	// Span is the requested time range, when stated.
	Span TimeRange `json:"time_range"`

	// Resolution holds any resolution preferences.
	Resolution Resolution `json:"resolution"`

	// PreferredModel is a model family the user asked for by name.
	PreferredModel string `json:"preferred_model,omitempty"`

	// Residue is purpose text the parser could not structure.
	Residue string `json:"residue,omitempty"`

	// ParsedAt records when the extraction happened.
	ParsedAt time.Time `json:"parsed_at"`
}

// DomainName derives a filesystem-safe domain identifier from the
// location, for config file naming.
func (i *Intent) DomainName() string {
	cleaned := make([]rune, 0, len(i.Location))
	for _, r := range i.Location {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			cleaned = append(cleaned, r)
		case r == ' ', r == '-', r == '_':
			cleaned = append(cleaned, '_')
		}
	}
	name := string(cleaned)
	if name == "" {
		return "unnamed_watershed"
	}
	return name
}

package panel

// Confidence is a self-assessed recommendation strength in [0, 1].
type Confidence float64

// Valid reports whether the value is inside the allowed range.
func (c Confidence) Valid() bool { return c >= 0 && c <= 1 }

// Clamp forces the value into [0, 1].
func (c Confidence) Clamp() Confidence {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// CombineAgreeing merges the confidences of experts recommending the
// same value. Independent agreement should strengthen the result, so
// the combined value is one minus the product of the doubts, capped
// below certainty.
func CombineAgreeing(values ...Confidence) Confidence {
	doubt := 1.0
	for _, v := range values {
		doubt *= 1 - float64(v.Clamp())
	}
	combined := Confidence(1 - doubt)
	if combined > 0.99 {
		combined = 0.99
	}
	return combined
}

// Recommendation is one expert's schema-checked answer for one round.
type Recommendation struct {
	Expert     string         `json:"expert"`
	Round      int            `json:"round"`
	Fields     map[string]any `json:"fields"`
	Rationale  string         `json:"rationale"`
	Confidence Confidence     `json:"confidence"`

	// Trimmed lists fields the expert proposed outside its authority.
	// They never reach the configuration but stay on record.
	Trimmed []string `json:"trimmed,omitempty"`
}

// wireRecommendation is the raw extraction payload from the model.
type wireRecommendation struct {
	Fields     map[string]any `json:"fields"`
	Rationale  string         `json:"rationale"`
	Confidence float64        `json:"confidence"`
}

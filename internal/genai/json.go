package genai

import (
	"bytes"
	"encoding/json"
)

// CleanJSON strips markdown code fences and surrounding whitespace from
// model responses. Models often wrap JSON in ```json ... ``` blocks.
// Handles ```json\n{...}\n```, ```\n{...}\n```, and bare JSON. If no
// fence is present but the payload embeds a JSON object in prose, the
// outermost {...} span is extracted.
func CleanJSON(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}

	if bytes.HasPrefix(s, []byte("```")) {
		// Strip opening fence line.
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		// Strip closing fence.
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		return bytes.TrimSpace(s)
	}

	if json.Valid(s) {
		return s
	}

	// Fall back to the outermost object span.
	start := bytes.IndexByte(s, '{')
	end := bytes.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return bytes.TrimSpace(s[start : end+1])
	}
	return s
}

// ParseJSON cleans and unmarshals a model response into T. A decode
// failure is reported as MalformedOutput so callers can apply their
// corrective-retry policy.
func ParseJSON[T any](data []byte) (*T, error) {
	cleaned := CleanJSON(data)
	var result T
	if err := json.Unmarshal(cleaned, &result); err != nil {
		return nil, &Error{Kind: MalformedOutput, Msg: "response is not valid JSON for the expected schema", Err: err}
	}
	return &result, nil
}

package mcptools

import "github.com/riverlab/indra/internal/confluence"

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// SynthesizeConfigInput is the input for the synthesize_config MCP tool.
type SynthesizeConfigInput struct {
	Purpose string         `json:"purpose" jsonschema:"natural-language description of the modeling purpose"`
	Prior   map[string]any `json:"prior,omitempty" jsonschema:"existing configuration fields to seed the draft from"`
}

// SynthesizeConfigOutput is the result of the synthesize_config MCP tool.
type SynthesizeConfigOutput struct {
	State      string         `json:"state"`
	SessionID  string         `json:"sessionId"`
	Rounds     int            `json:"rounds"`
	Fields     map[string]any `json:"fields,omitempty"`
	ConfigPath string         `json:"configPath,omitempty"`
	AuditPath  string         `json:"auditPath,omitempty"`
	Detail     string         `json:"detail,omitempty"`
}

// ValidateConfigInput is the input for the validate_config MCP tool.
// Exactly one of ConfigPath or Fields should be provided.
type ValidateConfigInput struct {
	ConfigPath string         `json:"configPath,omitempty" jsonschema:"path to a CONFLUENCE YAML configuration file"`
	Fields     map[string]any `json:"fields,omitempty" jsonschema:"inline configuration fields to validate instead of a file"`
}

// ValidateConfigOutput is the result of the validate_config MCP tool.
type ValidateConfigOutput struct {
	OK         bool                    `json:"ok"`
	Violations []confluence.RuleResult `json:"violations,omitempty"`
}

// GetConstraintsInput is the input for the get_constraints MCP tool.
type GetConstraintsInput struct{}

// FieldConstraint describes one catalog field for tool consumers.
type FieldConstraint struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// CrossFieldConstraint describes one conditional rule.
type CrossFieldConstraint struct {
	Name         string              `json:"name"`
	IfField      string              `json:"ifField"`
	IfValue      string              `json:"ifValue"`
	ThenRequired []string            `json:"thenRequired,omitempty"`
	ThenAllowed  map[string][]string `json:"thenAllowed,omitempty"`
	Detail       string              `json:"detail,omitempty"`
}

// GetConstraintsOutput is the result of the get_constraints MCP tool.
type GetConstraintsOutput struct {
	Fields     []FieldConstraint      `json:"fields"`
	CrossField []CrossFieldConstraint `json:"crossField,omitempty"`
}

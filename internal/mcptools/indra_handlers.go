package mcptools

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/riverlab/indra/internal/confluence"
	"github.com/riverlab/indra/internal/synth"
)

// IndraService handles MCP tool calls for the synthesis server mode.
type IndraService struct {
	coordinator *synth.Coordinator
	catalog     *confluence.ConstraintSet
}

// NewIndraService creates an IndraService over a session coordinator.
func NewIndraService(coordinator *synth.Coordinator, catalog *confluence.ConstraintSet) *IndraService {
	return &IndraService{
		coordinator: coordinator,
		catalog:     catalog,
	}
}

// SynthesizeConfig runs a full consultation session for a purpose.
func (s *IndraService) SynthesizeConfig(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SynthesizeConfigInput,
) (*mcp.CallToolResult, SynthesizeConfigOutput, error) {
	if input.Purpose == "" {
		return nil, SynthesizeConfigOutput{}, fmt.Errorf("purpose is required")
	}

	result := s.coordinator.RunWithPrior(ctx, input.Purpose, input.Prior)

	out := SynthesizeConfigOutput{
		State:      string(result.State),
		SessionID:  result.Trail.SessionID,
		Rounds:     len(result.Trail.Rounds),
		ConfigPath: result.ConfigPath,
		AuditPath:  result.AuditPath,
		Detail:     result.Trail.Detail,
	}
	if result.Config != nil {
		out.Fields = result.Config.Snapshot()
	}
	return nil, out, nil
}

// ValidateConfig validates a configuration file or inline fields
// against the constraint catalog.
func (s *IndraService) ValidateConfig(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ValidateConfigInput,
) (*mcp.CallToolResult, ValidateConfigOutput, error) {
	fields := input.Fields
	if input.ConfigPath != "" {
		data, err := os.ReadFile(input.ConfigPath)
		if err != nil {
			return nil, ValidateConfigOutput{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return nil, ValidateConfigOutput{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if len(fields) == 0 {
		return nil, ValidateConfigOutput{}, fmt.Errorf("either configPath or fields is required")
	}

	cfg := confluence.NewConfiguration(s.catalog)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		// Bookkeeping keys and unknown fields are not part of the
		// constraint surface.
		if _, known := s.catalog.Spec(name); !known {
			continue
		}
		if err := cfg.Set(name, fields[name]); err != nil {
			return nil, ValidateConfigOutput{}, fmt.Errorf("field %s: %w", name, err)
		}
	}

	report := confluence.Validate(cfg, s.catalog)
	return nil, ValidateConfigOutput{
		OK:         report.OK(),
		Violations: report.Violations(),
	}, nil
}

// GetConstraints returns the constraint catalog.
func (s *IndraService) GetConstraints(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ GetConstraintsInput,
) (*mcp.CallToolResult, GetConstraintsOutput, error) {
	out := GetConstraintsOutput{}
	for _, spec := range s.catalog.Fields {
		out.Fields = append(out.Fields, FieldConstraint{
			Name:        spec.Name,
			Type:        string(spec.Type),
			Required:    spec.Required,
			Enum:        spec.Enum,
			Description: spec.Description,
		})
	}
	for _, rule := range s.catalog.CrossField {
		out.CrossField = append(out.CrossField, CrossFieldConstraint{
			Name:         rule.Name,
			IfField:      rule.IfField,
			IfValue:      rule.IfValue,
			ThenRequired: rule.ThenRequired,
			ThenAllowed:  rule.ThenAllowed,
			Detail:       rule.Detail,
		})
	}
	return nil, out, nil
}

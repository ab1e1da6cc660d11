package mcptools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverlab/indra/internal/confluence"
	"github.com/riverlab/indra/internal/genai"
	"github.com/riverlab/indra/internal/intent"
	"github.com/riverlab/indra/internal/panel"
	"github.com/riverlab/indra/internal/synth"
)

const testExtraction = `{"location": "Bow River at Banff", "variables": ["streamflow"], "time_range": {}, "resolution": {}, "preferred_model": "", "residue": ""}`

func testRecommendation(t *testing.T, fields map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"fields":     fields,
		"rationale":  "test",
		"confidence": 0.8,
	})
	require.NoError(t, err)
	return string(payload)
}

func testCoordinator(t *testing.T) *synth.Coordinator {
	t.Helper()
	catalog := confluence.DefaultConstraints()
	scripts := map[string]map[string]any{
		"hydrology":          {confluence.FieldHydrologicalModel: "SUMMA"},
		"data-acquisition":   {confluence.FieldForcingDataset: "ERA5"},
		"numerical-methods":  {confluence.FieldRoutingModel: "mizuroute", confluence.FieldDomainDiscretization: "GRUs"},
		"domain-delineation": {confluence.FieldDomainDefinitionMethod: "delineate"},
	}

	var consultants []*panel.Consultant
	for _, profile := range panel.DefaultPanel() {
		client := genai.NewScriptedClient(genai.Step{Text: testRecommendation(t, scripts[profile.Name])})
		consultants = append(consultants, panel.NewConsultant(client, profile, catalog))
	}

	parser := intent.NewParser(genai.NewScriptedClient(genai.Step{Text: testExtraction}))
	return synth.NewCoordinator(parser, consultants, catalog,
		synth.WithExpertTimeout(5*time.Second),
		synth.WithOutputDir(t.TempDir()))
}

func TestSynthesizeConfig(t *testing.T) {
	svc := NewIndraService(testCoordinator(t), confluence.DefaultConstraints())

	_, out, err := svc.SynthesizeConfig(context.Background(), nil, SynthesizeConfigInput{
		Purpose: "Simulate daily streamflow for the Bow River at Banff",
	})
	require.NoError(t, err)

	assert.Equal(t, "accepted", out.State)
	assert.Equal(t, 1, out.Rounds)
	assert.Equal(t, "SUMMA", out.Fields[confluence.FieldHydrologicalModel])
	assert.FileExists(t, out.ConfigPath)
	assert.FileExists(t, out.AuditPath)
}

func TestSynthesizeConfig_EmptyPurpose(t *testing.T) {
	svc := NewIndraService(testCoordinator(t), confluence.DefaultConstraints())

	_, _, err := svc.SynthesizeConfig(context.Background(), nil, SynthesizeConfigInput{})
	require.Error(t, err)
}

func TestValidateConfig_InlineFields(t *testing.T) {
	svc := NewIndraService(nil, confluence.DefaultConstraints())

	_, out, err := svc.ValidateConfig(context.Background(), nil, ValidateConfigInput{
		Fields: map[string]any{
			confluence.FieldHydrologicalModel: "SUMMA",
		},
	})
	require.NoError(t, err)

	assert.False(t, out.OK)
	assert.NotEmpty(t, out.Violations)
}

func TestValidateConfig_FromFile(t *testing.T) {
	body := `DOMAIN_NAME: Bow
EXPERIMENT_ID: run_x
HYDROLOGICAL_MODEL: SUMMA
DOMAIN_DEFINITION_METHOD: delineate
ROUTING_MODEL: mizuroute
FORCING_DATASET: ERA5
DOMAIN_DISCRETIZATION: GRUs
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	svc := NewIndraService(nil, confluence.DefaultConstraints())
	_, out, err := svc.ValidateConfig(context.Background(), nil, ValidateConfigInput{ConfigPath: path})
	require.NoError(t, err)

	assert.True(t, out.OK)
	assert.Empty(t, out.Violations)
}

func TestValidateConfig_NoInput(t *testing.T) {
	svc := NewIndraService(nil, confluence.DefaultConstraints())
	_, _, err := svc.ValidateConfig(context.Background(), nil, ValidateConfigInput{})
	require.Error(t, err)
}

func TestGetConstraints(t *testing.T) {
	svc := NewIndraService(nil, confluence.DefaultConstraints())

	_, out, err := svc.GetConstraints(context.Background(), nil, GetConstraintsInput{})
	require.NoError(t, err)

	names := make([]string, len(out.Fields))
	for i, f := range out.Fields {
		names[i] = f.Name
	}
	assert.Contains(t, names, confluence.FieldHydrologicalModel)
	assert.Contains(t, names, confluence.FieldMinHRUSize)
	require.NotEmpty(t, out.CrossField)
	assert.Equal(t, "elevation-discretization-params", out.CrossField[0].Name)
}

func TestIndraMCPServer_ToolsList(t *testing.T) {
	server := NewIndraMCPServer(testCoordinator(t), confluence.DefaultConstraints())

	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.Run(ctx, serverTransport)

	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "dev"}, nil)
	session, err := mcpClient.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	toolNames := make([]string, len(tools.Tools))
	for i, tool := range tools.Tools {
		toolNames[i] = tool.Name
	}

	assert.Contains(t, toolNames, "synthesize_config")
	assert.Contains(t, toolNames, "validate_config")
	assert.Contains(t, toolNames, "get_constraints")
	assert.Len(t, tools.Tools, 3)
}

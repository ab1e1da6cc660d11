package synth

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverlab/indra/internal/confluence"
	"github.com/riverlab/indra/internal/genai"
	"github.com/riverlab/indra/internal/intent"
	"github.com/riverlab/indra/internal/panel"
)

const bowExtraction = `{
  "location": "Bow River at Banff",
  "variables": ["streamflow"],
  "time_range": {"start": "2004-01-01", "end": "2017-12-31"},
  "resolution": {"spatial": "", "temporal": "daily"},
  "preferred_model": "",
  "residue": ""
}`

func recStep(t *testing.T, confidence float64, fields map[string]any) genai.Step {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"fields":     fields,
		"rationale":  "test rationale",
		"confidence": confidence,
	})
	require.NoError(t, err)
	return genai.Step{Text: string(payload)}
}

// newSession wires a coordinator over the default panel with one
// scripted client per expert. Experts missing from scripts get a
// perpetually abstaining client.
func newSession(t *testing.T, scripts map[string][]genai.Step, opts ...Option) (*Coordinator, map[string]*genai.ScriptedClient) {
	t.Helper()
	catalog := confluence.DefaultConstraints()
	clients := map[string]*genai.ScriptedClient{}

	var consultants []*panel.Consultant
	for _, profile := range panel.DefaultPanel() {
		steps, ok := scripts[profile.Name]
		if !ok {
			steps = []genai.Step{{Err: &genai.Error{Kind: genai.BackendError, Msg: "unscripted expert"}}}
		}
		client := genai.NewScriptedClient(steps...)
		clients[profile.Name] = client
		consultants = append(consultants, panel.NewConsultant(client, profile, catalog))
	}

	parser := intent.NewParser(genai.NewScriptedClient(genai.Step{Text: bowExtraction}))
	opts = append([]Option{WithExpertTimeout(5 * time.Second)}, opts...)
	return NewCoordinator(parser, consultants, catalog, opts...), clients
}

func goodRoundScripts(t *testing.T) map[string][]genai.Step {
	return map[string][]genai.Step{
		"hydrology": {recStep(t, 0.85, map[string]any{
			confluence.FieldHydrologicalModel: "SUMMA",
		})},
		"data-acquisition": {recStep(t, 0.8, map[string]any{
			confluence.FieldForcingDataset: "ERA5",
		})},
		"numerical-methods": {recStep(t, 0.8, map[string]any{
			confluence.FieldRoutingModel:         "mizuroute",
			confluence.FieldDomainDiscretization: "GRUs",
		})},
		"domain-delineation": {recStep(t, 0.75, map[string]any{
			confluence.FieldDomainDefinitionMethod: "delineate",
		})},
	}
}

func TestRun_AcceptedInOneRound(t *testing.T) {
	dir := t.TempDir()
	coord, _ := newSession(t, goodRoundScripts(t), WithOutputDir(dir))

	result := coord.Run(context.Background(), "Simulate daily streamflow for the Bow River at Banff")

	require.Equal(t, StateAccepted, result.State)
	require.NoError(t, result.Err)
	assert.True(t, result.Config.Frozen())
	assert.Len(t, result.Trail.Rounds, 1)
	assert.Equal(t, "Bow River at Banff", result.Intent.Location)

	v, _ := result.Config.Get(confluence.FieldHydrologicalModel)
	assert.Equal(t, "SUMMA", v)

	assert.FileExists(t, result.ConfigPath)
	assert.FileExists(t, result.AuditPath)
	assert.Equal(t, result.ConfigPath, result.Trail.ConfigPath)

	// The run identifier is reported directly, sharing its stamp with
	// the written config file.
	require.True(t, strings.HasPrefix(result.ExperimentID, "run_"))
	assert.Contains(t, result.ConfigPath, strings.TrimPrefix(result.ExperimentID, "run_"))
}

func TestRun_ViolationFeedbackDrivesSecondRound(t *testing.T) {
	scripts := goodRoundScripts(t)
	scripts["numerical-methods"] = []genai.Step{
		recStep(t, 0.8, map[string]any{
			confluence.FieldRoutingModel:         "mizuroute",
			confluence.FieldDomainDiscretization: "elevation",
		}),
		recStep(t, 0.9, map[string]any{
			confluence.FieldElevationBandSize: 200,
			confluence.FieldMinHRUSize:        5,
		}),
	}

	coord, clients := newSession(t, scripts)
	result := coord.Run(context.Background(), "High-elevation Bow simulation")

	require.Equal(t, StateAccepted, result.State)
	require.Len(t, result.Trail.Rounds, 2)

	firstReport := result.Trail.Rounds[0].Report
	require.NotNil(t, firstReport)
	assert.Len(t, firstReport.Violations(), 2)

	// Round two prompts carry the violations back to the panel.
	numerical := clients["numerical-methods"]
	require.Equal(t, 2, numerical.Calls())
	assert.Contains(t, numerical.Requests[1].Prompt, "failed validation")
	assert.Contains(t, numerical.Requests[1].Prompt, confluence.FieldElevationBandSize)

	v, _ := result.Config.Get(confluence.FieldElevationBandSize)
	assert.Equal(t, 200, v)
}

func TestRun_AbstentionToleratedWithinRound(t *testing.T) {
	scripts := goodRoundScripts(t)
	scripts["data-acquisition"] = []genai.Step{
		{Err: &genai.Error{Kind: genai.Timeout, Msg: "deadline"}},
		recStep(t, 0.8, map[string]any{confluence.FieldForcingDataset: "RDRS"}),
	}

	coord, _ := newSession(t, scripts)
	result := coord.Run(context.Background(), "Bow at Banff")

	require.Equal(t, StateAccepted, result.State)
	require.Len(t, result.Trail.Rounds, 2)
	require.Len(t, result.Trail.Rounds[0].Abstentions, 1)
	assert.Equal(t, "data-acquisition", result.Trail.Rounds[0].Abstentions[0].Expert)

	v, _ := result.Config.Get(confluence.FieldForcingDataset)
	assert.Equal(t, "RDRS", v)
}

func TestRun_FullAbstentionRetriesThenFails(t *testing.T) {
	coord, clients := newSession(t, map[string][]genai.Step{})
	result := coord.Run(context.Background(), "Bow at Banff")

	require.Equal(t, StateFailed, result.State)
	assert.Contains(t, result.Trail.Detail, "retry budget")

	// One exhausted round per attempt, default budget is one retry.
	require.Len(t, result.Trail.Rounds, 2)
	assert.Equal(t, 1, result.Trail.Rounds[0].Number)
	assert.Equal(t, 1, result.Trail.Rounds[1].Number)
	assert.Len(t, result.Trail.Rounds[0].Abstentions, 4)
	assert.Equal(t, 2, result.Trail.Attempt)

	for _, client := range clients {
		assert.Equal(t, 2, client.Calls())
	}
}

func TestRun_ParseFailureFailsFast(t *testing.T) {
	catalog := confluence.DefaultConstraints()
	var consultants []*panel.Consultant
	for _, profile := range panel.DefaultPanel() {
		consultants = append(consultants, panel.NewConsultant(genai.NewScriptedClient(), profile, catalog))
	}
	parser := intent.NewParser(genai.NewScriptedClient(
		genai.Step{Text: "not json"},
		genai.Step{Text: "still not json"},
	))
	coord := NewCoordinator(parser, consultants, catalog)

	result := coord.Run(context.Background(), "Bow at Banff")

	require.Equal(t, StateFailed, result.State)
	var perr *intent.ParseError
	require.ErrorAs(t, result.Err, &perr)
	assert.Empty(t, result.Trail.Rounds)
}

func TestRun_PersistentViolationsEscalate(t *testing.T) {
	scripts := goodRoundScripts(t)
	scripts["hydrology"] = []genai.Step{recStep(t, 0.9, map[string]any{
		confluence.FieldHydrologicalModel: "VIC",
	})}

	coord, _ := newSession(t, scripts, WithRoundBound(2))
	result := coord.Run(context.Background(), "Bow at Banff")

	require.Equal(t, StateEscalated, result.State)
	assert.Len(t, result.Trail.Rounds, 2)
	assert.Contains(t, result.Trail.Detail, "unresolved violations")
	assert.False(t, result.Config.Frozen(), "escalated drafts stay open for human review")
}

func TestRunWithPrior_SeededFieldsStaySettled(t *testing.T) {
	scripts := goodRoundScripts(t)
	// The panel would pick SUMMA, but the prior config already settled
	// the model family.
	coord, _ := newSession(t, scripts)

	prior := map[string]any{
		"DOMAIN_NAME":                     "Bow",
		confluence.FieldHydrologicalModel: "MESH",
	}
	result := coord.RunWithPrior(context.Background(), "Bow at Banff", prior)

	require.Equal(t, StateAccepted, result.State)
	v, _ := result.Config.Get(confluence.FieldHydrologicalModel)
	assert.Equal(t, "MESH", v, "seeded fields are not reopened by the panel")
	assert.False(t, result.Config.Has("DOMAIN_NAME"), "bookkeeping keys are not catalog fields")
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateAccepted.Terminal())
	assert.True(t, StateEscalated.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateConsulting.Terminal())
}

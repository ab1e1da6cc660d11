package panel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverlab/indra/internal/confluence"
	"github.com/riverlab/indra/internal/genai"
	"github.com/riverlab/indra/internal/intent"
)

func bowIntent() *intent.Intent {
	return &intent.Intent{
		RawPurpose: "Simulate daily streamflow for the Bow River at Banff",
		Location:   "Bow River at Banff",
		Variables:  []string{"streamflow"},
	}
}

func hydrologyConsultant(t *testing.T, client genai.Client) *Consultant {
	t.Helper()
	var profile ExpertProfile
	for _, p := range DefaultPanel() {
		if p.Name == "hydrology" {
			profile = p
		}
	}
	require.NotEmpty(t, profile.Name)
	return NewConsultant(client, profile, confluence.DefaultConstraints())
}

func TestConsult_HappyPath(t *testing.T) {
	client := genai.NewScriptedClient(genai.Step{Text: `{
		"fields": {"HYDROLOGICAL_MODEL": "SUMMA"},
		"rationale": "Snowmelt-dominated alpine basin favors an energy-balance model.",
		"confidence": 0.85
	}`})

	rec, err := hydrologyConsultant(t, client).Consult(context.Background(), bowIntent(), 1, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "hydrology", rec.Expert)
	assert.Equal(t, 1, rec.Round)
	assert.Equal(t, "SUMMA", rec.Fields[confluence.FieldHydrologicalModel])
	assert.Equal(t, Confidence(0.85), rec.Confidence)
	assert.Empty(t, rec.Trimmed)
}

func TestConsult_UnauthorizedFieldsTrimmed(t *testing.T) {
	client := genai.NewScriptedClient(genai.Step{Text: `{
		"fields": {"HYDROLOGICAL_MODEL": "SUMMA", "FORCING_DATASET": "ERA5", "ROUTING_MODEL": "mizuroute"},
		"rationale": "Reaching beyond my lane.",
		"confidence": 0.7
	}`})

	rec, err := hydrologyConsultant(t, client).Consult(context.Background(), bowIntent(), 1, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{confluence.FieldHydrologicalModel: "SUMMA"}, rec.Fields)
	assert.Equal(t, []string{"FORCING_DATASET", "ROUTING_MODEL"}, rec.Trimmed)
}

func TestConsult_ConfidenceClamped(t *testing.T) {
	client := genai.NewScriptedClient(genai.Step{Text: `{
		"fields": {"HYDROLOGICAL_MODEL": "GR"},
		"rationale": "Very sure.",
		"confidence": 1.4
	}`})

	rec, err := hydrologyConsultant(t, client).Consult(context.Background(), bowIntent(), 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Confidence(1), rec.Confidence)
}

func TestConsult_MalformedThenCorrectedRetry(t *testing.T) {
	client := genai.NewScriptedClient(
		genai.Step{Text: "I would go with SUMMA here."},
		genai.Step{Text: `{"fields": {"HYDROLOGICAL_MODEL": "SUMMA"}, "rationale": "ok", "confidence": 0.8}`},
	)

	rec, err := hydrologyConsultant(t, client).Consult(context.Background(), bowIntent(), 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "SUMMA", rec.Fields[confluence.FieldHydrologicalModel])
	require.Equal(t, 2, client.Calls())
	assert.Contains(t, client.Requests[1].Prompt, "could not be parsed")
}

func TestConsult_MalformedTwiceErrors(t *testing.T) {
	client := genai.NewScriptedClient(
		genai.Step{Text: "nope"},
		genai.Step{Text: "still nope"},
	)

	_, err := hydrologyConsultant(t, client).Consult(context.Background(), bowIntent(), 1, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 2, client.Calls())
}

func TestConsult_BackendFailureSurfaces(t *testing.T) {
	client := genai.NewScriptedClient(genai.Step{Err: &genai.Error{Kind: genai.Timeout, Msg: "deadline"}})

	_, err := hydrologyConsultant(t, client).Consult(context.Background(), bowIntent(), 1, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, client.Calls())
}

func TestConsult_PromptCarriesStateAndFeedback(t *testing.T) {
	client := genai.NewScriptedClient(genai.Step{Text: `{"fields": {}, "rationale": "settled", "confidence": 0.9}`})

	snapshot := map[string]any{confluence.FieldHydrologicalModel: "SUMMA"}
	feedback := []confluence.RuleResult{{
		Field:  confluence.FieldElevationBandSize,
		Rule:   "elevation-discretization-params",
		Detail: "elevation discretization requires ELEVATION_BAND_SIZE and MIN_HRU_SIZE",
	}}

	rec, err := hydrologyConsultant(t, client).Consult(context.Background(), bowIntent(), 2, snapshot, feedback)
	require.NoError(t, err)
	assert.Empty(t, rec.Fields, "empty fields object is a valid no-objection answer")

	prompt := client.Requests[0].Prompt
	assert.Contains(t, prompt, "Bow River at Banff")
	assert.Contains(t, prompt, `"HYDROLOGICAL_MODEL": "SUMMA"`)
	assert.Contains(t, prompt, "failed validation")
	assert.Contains(t, prompt, "ELEVATION_BAND_SIZE")
	assert.Contains(t, client.Requests[0].System, "hydrologist")
}

func TestCombineAgreeing(t *testing.T) {
	assert.InDelta(t, 0.84, float64(CombineAgreeing(0.6, 0.6)), 1e-9)
	assert.Equal(t, Confidence(0.99), CombineAgreeing(1, 0.5), "certainty is capped")
	assert.InDelta(t, 0.7, float64(CombineAgreeing(0.7)), 1e-9)
}

func TestDefaultPanel_AuthorityCoversCatalog(t *testing.T) {
	covered := map[string]bool{}
	for _, p := range DefaultPanel() {
		for _, f := range p.Authority {
			covered[f] = true
		}
	}
	for _, spec := range confluence.DefaultConstraints().Fields {
		assert.True(t, covered[spec.Name], "no expert holds authority over %s", spec.Name)
	}
}

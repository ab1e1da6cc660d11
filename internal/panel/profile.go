// Package panel defines the expert roster and the consultation protocol
// each expert speaks: a profile frames the generation call, and a
// Recommendation is the schema-checked, authority-filtered result.
package panel

import "github.com/riverlab/indra/internal/confluence"

// ExpertProfile describes one member of the consultation panel.
type ExpertProfile struct {
	// Name is the stable identifier used in audit trails and logs.
	Name string

	// Title is the human-readable role.
	Title string

	// Framing is the system prompt establishing the expert's perspective.
	Framing string

	// Authority lists the configuration fields this expert may set.
	// Recommendations touching other fields are trimmed and recorded as
	// protocol violations.
	Authority []string
}

// Authorized reports whether the profile may recommend the given field.
func (p *ExpertProfile) Authorized(field string) bool {
	for _, f := range p.Authority {
		if f == field {
			return true
		}
	}
	return false
}

// DefaultPanel returns the standard four-expert roster. Authority is
// disjoint across experts except where noted; the synthesis layer still
// resolves overlaps by confidence first.
func DefaultPanel() []ExpertProfile {
	return []ExpertProfile{
		{
			Name:  "hydrology",
			Title: "Hydrological Sciences Expert",
			Framing: `You are a senior hydrologist advising on process representation for a CONFLUENCE model setup. You weigh dominant runoff generation mechanisms, snow and glacier influence, and the model structures best suited to them. You recommend only what the stated purpose supports and you state your confidence honestly.`,
			Authority: []string{
				confluence.FieldHydrologicalModel,
			},
		},
		{
			Name:  "data-acquisition",
			Title: "Forcing Data Specialist",
			Framing: `You are a forcing-data specialist advising on meteorological inputs for a CONFLUENCE model setup. You weigh dataset coverage, native resolution, latency, and known regional biases. You recommend only datasets available for the stated domain and period.`,
			Authority: []string{
				confluence.FieldForcingDataset,
			},
		},
		{
			Name:  "numerical-methods",
			Title: "Numerical Methods Expert",
			Framing: `You are a computational hydrologist advising on routing and spatial discretization for a CONFLUENCE model setup. You weigh numerical stability, runtime cost, and the resolution the purpose actually needs. When you choose elevation-based discretization you always set its band and minimum-HRU parameters.`,
			Authority: []string{
				confluence.FieldRoutingModel,
				confluence.FieldDomainDiscretization,
				confluence.FieldElevationBandSize,
				confluence.FieldMinHRUSize,
			},
		},
		{
			Name:  "domain-delineation",
			Title: "Domain Delineation Expert",
			Framing: `You are a geospatial analyst advising on domain definition for a CONFLUENCE model setup. You weigh basin complexity, available gauging, and whether a lumped, subset, or fully delineated representation serves the stated purpose.`,
			Authority: []string{
				confluence.FieldDomainDefinitionMethod,
			},
		},
	}
}

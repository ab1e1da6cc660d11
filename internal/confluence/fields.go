// Package confluence models the boundary to the CONFLUENCE hydrological
// modeling framework: the configuration field catalog, its constraint
// set, and deterministic validation of synthesized configurations. The
// framework's own file formats and execution are out of scope; only as
// much schema as validation needs is declared here.
package confluence

// FieldType declares the value type a configuration field accepts.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
)

// FieldSpec describes one configuration field the framework understands.
type FieldSpec struct {
	Name        string
	Type        FieldType
	Required    bool
	Enum        []string // allowed values; empty means unrestricted
	Description string
}

// CrossFieldRule is a conditional constraint: when IfField equals
// IfValue, the fields in ThenRequired must be present and the values in
// ThenAllowed restrict the named fields further.
type CrossFieldRule struct {
	Name         string
	IfField      string
	IfValue      string
	ThenRequired []string
	ThenAllowed  map[string][]string
	Detail       string
}

// ConstraintSet is the framework's declared constraint surface for one
// or more supported model families.
type ConstraintSet struct {
	Fields     []FieldSpec
	CrossField []CrossFieldRule
}

// Spec returns the FieldSpec for a field name, if declared.
func (cs *ConstraintSet) Spec(name string) (FieldSpec, bool) {
	for _, f := range cs.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Well-known CONFLUENCE field names.
const (
	FieldHydrologicalModel      = "HYDROLOGICAL_MODEL"
	FieldDomainDefinitionMethod = "DOMAIN_DEFINITION_METHOD"
	FieldRoutingModel           = "ROUTING_MODEL"
	FieldForcingDataset         = "FORCING_DATASET"
	FieldDomainDiscretization   = "DOMAIN_DISCRETIZATION"
	FieldElevationBandSize      = "ELEVATION_BAND_SIZE"
	FieldMinHRUSize             = "MIN_HRU_SIZE"
)

// DefaultConstraints returns the constraint set for the currently
// supported CONFLUENCE setup surface.
func DefaultConstraints() *ConstraintSet {
	return &ConstraintSet{
		Fields: []FieldSpec{
			{
				Name:        FieldHydrologicalModel,
				Type:        TypeString,
				Required:    true,
				Enum:        []string{"SUMMA", "FLASH", "GR", "FUSE", "HYPE", "MESH"},
				Description: "hydrological model family",
			},
			{
				Name:        FieldDomainDefinitionMethod,
				Type:        TypeString,
				Required:    true,
				Enum:        []string{"subset", "delineate", "lumped"},
				Description: "how the model domain is defined",
			},
			{
				Name:        FieldRoutingModel,
				Type:        TypeString,
				Required:    true,
				Enum:        []string{"mizuroute"},
				Description: "streamflow routing model",
			},
			{
				Name:        FieldForcingDataset,
				Type:        TypeString,
				Required:    true,
				Enum:        []string{"RDRS", "ERA5"},
				Description: "meteorological forcing dataset",
			},
			{
				Name:        FieldDomainDiscretization,
				Type:        TypeString,
				Required:    true,
				Enum:        []string{"elevation", "soilclass", "landclass", "radiation", "GRUs", "combined"},
				Description: "spatial discretization scheme",
			},
			{
				Name:        FieldElevationBandSize,
				Type:        TypeInt,
				Description: "elevation band size in metres (elevation discretization only)",
			},
			{
				Name:        FieldMinHRUSize,
				Type:        TypeInt,
				Description: "minimum HRU size in km2 (elevation discretization only)",
			},
		},
		CrossField: []CrossFieldRule{
			{
				Name:         "elevation-discretization-params",
				IfField:      FieldDomainDiscretization,
				IfValue:      "elevation",
				ThenRequired: []string{FieldElevationBandSize, FieldMinHRUSize},
				Detail:       "elevation discretization requires ELEVATION_BAND_SIZE and MIN_HRU_SIZE",
			},
		},
	}
}

package confluence

import (
	"fmt"
	"sort"
	"strings"
)

// RuleResult is one row of a validation report.
type RuleResult struct {
	Field     string `json:"field"`
	Rule      string `json:"rule"`
	Satisfied bool   `json:"satisfied"`
	Detail    string `json:"detail,omitempty"`
}

// ValidationReport is the full outcome of validating one configuration
// against one constraint set. Rows are ordered by the constraint set's
// declaration order, so identical inputs always yield identical reports.
type ValidationReport struct {
	Rows []RuleResult `json:"rows"`
}

// OK reports whether every rule is satisfied.
func (r *ValidationReport) OK() bool {
	for _, row := range r.Rows {
		if !row.Satisfied {
			return false
		}
	}
	return true
}

// Violations returns only the unsatisfied rows.
func (r *ValidationReport) Violations() []RuleResult {
	var out []RuleResult
	for _, row := range r.Rows {
		if !row.Satisfied {
			out = append(out, row)
		}
	}
	return out
}

// Summary renders violations as one line per rule, for logs and prompts.
func (r *ValidationReport) Summary() string {
	var lines []string
	for _, row := range r.Violations() {
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", row.Field, row.Rule, row.Detail))
	}
	return strings.Join(lines, "\n")
}

// Validate checks a configuration against a constraint set. It is a
// pure function of its inputs: the configuration is never mutated and
// identical inputs always produce identical reports.
func Validate(cfg *Configuration, cs *ConstraintSet) *ValidationReport {
	report := &ValidationReport{}

	for _, spec := range cs.Fields {
		value, present := cfg.Get(spec.Name)

		if spec.Required {
			row := RuleResult{Field: spec.Name, Rule: "required", Satisfied: present}
			if !present {
				row.Detail = fmt.Sprintf("required field %s is missing", spec.Name)
			}
			report.Rows = append(report.Rows, row)
		}

		if !present || len(spec.Enum) == 0 {
			continue
		}

		str, _ := value.(string)
		row := RuleResult{Field: spec.Name, Rule: "enum", Satisfied: contains(spec.Enum, str)}
		if !row.Satisfied {
			row.Detail = fmt.Sprintf("%q is not one of [%s]", str, strings.Join(spec.Enum, ", "))
		}
		report.Rows = append(report.Rows, row)
	}

	for _, rule := range cs.CrossField {
		trigger, present := cfg.Get(rule.IfField)
		if !present || trigger != rule.IfValue {
			continue
		}

		for _, required := range rule.ThenRequired {
			row := RuleResult{
				Field:     required,
				Rule:      rule.Name,
				Satisfied: cfg.Has(required),
			}
			if !row.Satisfied {
				row.Detail = rule.Detail
			}
			report.Rows = append(report.Rows, row)
		}

		// Sorted iteration keeps report order deterministic.
		for _, field := range sortedKeys(rule.ThenAllowed) {
			allowed := rule.ThenAllowed[field]
			value, ok := cfg.Get(field)
			if !ok {
				continue
			}
			str, _ := value.(string)
			row := RuleResult{Field: field, Rule: rule.Name, Satisfied: contains(allowed, str)}
			if !row.Satisfied {
				row.Detail = fmt.Sprintf("%s=%s restricts %s to [%s], got %q",
					rule.IfField, rule.IfValue, field, strings.Join(allowed, ", "), str)
			}
			report.Rows = append(report.Rows, row)
		}
	}

	return report
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

package confluence

import (
	"errors"
	"fmt"
)

// ErrFrozen is returned when mutating a configuration that has been
// accepted as final.
var ErrFrozen = errors.New("confluence: configuration is frozen")

// ErrOverwrite is returned by Set when the field already holds a value.
// Overwrites must go through Replace so that conflict resolution is the
// only code path that changes a decided field.
var ErrOverwrite = errors.New("confluence: field already set")

// Configuration is the accumulating field-to-value mapping for one
// CONFLUENCE setup. Every present field holds exactly one value whose
// type matches the field's declared type. Insertion order is preserved
// so rendering and reports are deterministic.
type Configuration struct {
	constraints *ConstraintSet
	order       []string
	values      map[string]any
	frozen      bool
}

// NewConfiguration creates an empty configuration bound to a constraint set.
func NewConfiguration(cs *ConstraintSet) *Configuration {
	return &Configuration{
		constraints: cs,
		values:      make(map[string]any),
	}
}

// checkType validates a value against the field's declared type. Unknown
// fields are rejected outright; the validator never has to see them.
func (c *Configuration) checkType(field string, value any) error {
	spec, ok := c.constraints.Spec(field)
	if !ok {
		return fmt.Errorf("confluence: unknown field %q", field)
	}
	switch spec.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("confluence: field %q wants a string, got %T", field, value)
		}
	case TypeInt:
		switch v := value.(type) {
		case int:
		case float64:
			// JSON numbers decode as float64; accept whole values.
			if v != float64(int(v)) {
				return fmt.Errorf("confluence: field %q wants an integer, got %v", field, v)
			}
		default:
			return fmt.Errorf("confluence: field %q wants an integer, got %T", field, value)
		}
	}
	return nil
}

// normalize converts JSON float64 integers to int for TypeInt fields.
func (c *Configuration) normalize(field string, value any) any {
	spec, _ := c.constraints.Spec(field)
	if spec.Type == TypeInt {
		if f, ok := value.(float64); ok {
			return int(f)
		}
	}
	return value
}

// Set records a value for a previously unset field.
func (c *Configuration) Set(field string, value any) error {
	if c.frozen {
		return ErrFrozen
	}
	if _, exists := c.values[field]; exists {
		return fmt.Errorf("%w: %s", ErrOverwrite, field)
	}
	if err := c.checkType(field, value); err != nil {
		return err
	}
	c.order = append(c.order, field)
	c.values[field] = c.normalize(field, value)
	return nil
}

// Replace overwrites an existing field. Only conflict resolution calls
// this; everything else uses Set.
func (c *Configuration) Replace(field string, value any) error {
	if c.frozen {
		return ErrFrozen
	}
	if _, exists := c.values[field]; !exists {
		return c.Set(field, value)
	}
	if err := c.checkType(field, value); err != nil {
		return err
	}
	c.values[field] = c.normalize(field, value)
	return nil
}

// Unset removes a field, keeping the configuration consistent when a
// conflicted value is withdrawn for another round.
func (c *Configuration) Unset(field string) error {
	if c.frozen {
		return ErrFrozen
	}
	if _, exists := c.values[field]; !exists {
		return nil
	}
	delete(c.values, field)
	for i, f := range c.order {
		if f == field {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the value for a field and whether it is set.
func (c *Configuration) Get(field string) (any, bool) {
	v, ok := c.values[field]
	return v, ok
}

// Has reports whether a field is set.
func (c *Configuration) Has(field string) bool {
	_, ok := c.values[field]
	return ok
}

// Len returns the number of set fields.
func (c *Configuration) Len() int { return len(c.values) }

// Fields returns the set field names in insertion order.
func (c *Configuration) Fields() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Constraints returns the constraint set this configuration is bound to.
func (c *Configuration) Constraints() *ConstraintSet { return c.constraints }

// Freeze makes the configuration immutable. Called once validation accepts it.
func (c *Configuration) Freeze() { c.frozen = true }

// Frozen reports whether the configuration has been finalized.
func (c *Configuration) Frozen() bool { return c.frozen }

// Snapshot returns a detached copy of the current field values. Experts
// read snapshots; they never see the live draft.
func (c *Configuration) Snapshot() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Clone returns a mutable deep copy, used to seed a session from a
// prior configuration.
func (c *Configuration) Clone() *Configuration {
	clone := NewConfiguration(c.constraints)
	clone.order = append([]string(nil), c.order...)
	for k, v := range c.values {
		clone.values[k] = v
	}
	return clone
}

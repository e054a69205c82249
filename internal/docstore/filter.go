package docstore

import (
	"fmt"
	"regexp"
	"time"
)

// Op is a comparison operator in a filter condition.
type Op int

// Supported operators.
const (
	OpEq Op = iota
	OpGte
	OpLte
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpGte:
		return ">="
	case OpLte:
		return "<="
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Condition constrains one field.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// fieldPattern restricts field names to plain identifiers. Backends embed
// field names in query paths, so nothing else may reach them.
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter is a conjunction of conditions built incrementally. A field only
// constrains the result when a condition for it was added explicitly; the
// zero Filter (and a nil *Filter) matches every document.
type Filter struct {
	conds      []Condition
	internalID string
	byID       bool
}

// NewFilter returns an empty filter.
func NewFilter() *Filter {
	return &Filter{}
}

// ByInternalID returns a filter matching the document whose storage-internal
// identifier is id.
func ByInternalID(id string) *Filter {
	return &Filter{internalID: id, byID: true}
}

// Eq adds an equality condition.
func (f *Filter) Eq(field string, value any) *Filter {
	f.conds = append(f.conds, Condition{Field: field, Op: OpEq, Value: value})
	return f
}

// EqIfSet adds an equality condition only when value is non-empty.
func (f *Filter) EqIfSet(field, value string) *Filter {
	if value == "" {
		return f
	}
	return f.Eq(field, value)
}

// Range adds inclusive bounds on a time field. Each bound is independent and
// a nil bound leaves that side open.
func (f *Filter) Range(field string, from, to *time.Time) *Filter {
	if from != nil {
		f.conds = append(f.conds, Condition{Field: field, Op: OpGte, Value: NewTime(*from)})
	}
	if to != nil {
		f.conds = append(f.conds, Condition{Field: field, Op: OpLte, Value: NewTime(*to)})
	}
	return f
}

// Conditions returns the field conditions in insertion order.
func (f *Filter) Conditions() []Condition {
	if f == nil {
		return nil
	}
	return f.conds
}

// InternalID returns the identifier set by ByInternalID.
func (f *Filter) InternalID() (string, bool) {
	if f == nil {
		return "", false
	}
	return f.internalID, f.byID
}

// Empty reports whether the filter matches every document.
func (f *Filter) Empty() bool {
	return f == nil || (!f.byID && len(f.conds) == 0)
}

// Validate checks every field name.
func (f *Filter) Validate() error {
	for _, c := range f.Conditions() {
		if err := ValidateField(c.Field); err != nil {
			return err
		}
	}
	return nil
}

// ValidateField rejects names that are not plain identifiers.
func ValidateField(name string) error {
	if !fieldPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

// Matches evaluates the filter against an in-memory document. Used where a
// result set is already materialised (demo data, tests).
func (f *Filter) Matches(doc Document) bool {
	if id, ok := f.InternalID(); ok && doc.InternalID() != id {
		return false
	}
	for _, c := range f.Conditions() {
		if !c.matches(doc[c.Field]) {
			return false
		}
	}
	return true
}

func (c Condition) matches(v any) bool {
	if v == nil {
		return false
	}
	if bound, ok := c.Value.(Time); ok {
		got, err := CoerceTime(v)
		if err != nil {
			return false
		}
		switch c.Op {
		case OpGte:
			return !got.Before(bound.Time)
		case OpLte:
			return !got.After(bound.Time)
		default:
			return got.Equal(bound.Time)
		}
	}
	if want, ok := Float(c.Value); ok {
		got, ok := Float(v)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGte:
			return got >= want
		case OpLte:
			return got <= want
		default:
			return got == want
		}
	}
	return c.Op == OpEq && v == c.Value
}

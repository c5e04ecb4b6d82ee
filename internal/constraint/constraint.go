// Package constraint checks declarative field-comparison rules against any
// value that can look fields up by name.
//
// A rule compares one field either with another field (Ref) or with a literal
// (Value). Every failing rule is reported; checking never stops early.
package constraint

import (
	"fmt"
	"strconv"
	"time"
)

// Op is a comparison operator.
type Op int

const (
	// GreaterThan requires field > reference, compared as numbers.
	GreaterThan Op = iota
	// GreaterOrEqual requires field >= reference, compared as numbers.
	GreaterOrEqual
	// DateAfter requires field to be a date strictly after reference.
	DateAfter
)

func (o Op) String() string {
	switch o {
	case GreaterThan:
		return "greater_than"
	case GreaterOrEqual:
		return "greater_or_equal"
	case DateAfter:
		return "date_after"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

func (o Op) defaultMessage() string {
	switch o {
	case DateAfter:
		return "Date is less than the specified date"
	}
	return "Value is less than the specified number"
}

// Accessor looks up a field value by name.
type Accessor interface {
	Lookup(name string) (any, bool)
}

// Map is an Accessor over a plain map.
type Map map[string]any

// Lookup implements Accessor.
func (m Map) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Rule is one constraint on a field.
type Rule struct {
	Field string
	Op    Op
	// Ref names the field to compare against. When empty, Value is used.
	Ref   string
	Value any
	// Message overrides the operator's default message.
	Message string
}

// Violation is a failed rule.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Check evaluates rules against target and returns every violation.
func Check(target Accessor, rules ...Rule) []Violation {
	var out []Violation
	for _, r := range rules {
		if msg, ok := r.eval(target); !ok {
			out = append(out, Violation{Field: r.Field, Message: msg})
		}
	}
	return out
}

func (r Rule) eval(target Accessor) (string, bool) {
	fail := r.Message
	if fail == "" {
		fail = r.Op.defaultMessage()
	}

	val, ok := target.Lookup(r.Field)
	if !ok {
		return "field is not set", false
	}
	ref := r.Value
	if r.Ref != "" {
		if ref, ok = target.Lookup(r.Ref); !ok {
			return fmt.Sprintf("reference field %s is not set", r.Ref), false
		}
	}

	switch r.Op {
	case GreaterThan, GreaterOrEqual:
		a, err := number(val)
		if err != nil {
			return err.Error(), false
		}
		b, err := number(ref)
		if err != nil {
			return err.Error(), false
		}
		if r.Op == GreaterThan && a > b || r.Op == GreaterOrEqual && a >= b {
			return "", true
		}
	case DateAfter:
		a, err := date(val)
		if err != nil {
			return err.Error(), false
		}
		b, err := date(ref)
		if err != nil {
			return err.Error(), false
		}
		if a.After(b) {
			return "", true
		}
	default:
		return fmt.Sprintf("unknown operator %s", r.Op), false
	}
	return fail, false
}

func number(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case time.Duration:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a number", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("value of type %T is not a number", v)
}

func date(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		for _, layout := range []string{time.DateOnly, time.RFC3339} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("value %q is not a date", x)
	}
	return time.Time{}, fmt.Errorf("value of type %T is not a date", v)
}

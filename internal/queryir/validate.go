package queryir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate reports every problem in q, joined.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) addf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case nil:
		v.addf("nil query")
	default:
		v.addf("unsupported query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.RunID == "" {
		v.addf("run id is required")
	}
	if sel.Limit < 0 {
		v.addf("limit must not be negative, got %d", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case AtLeast:
		v.validateAtLeast(pred)
	case *AtLeast:
		v.validateAtLeast(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case nil:
		v.addf("nil predicate")
	default:
		v.addf("unsupported predicate type %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	typ, ok := Fields[eq.Field]
	if !ok {
		v.addf("unknown field %q", eq.Field)
		return
	}
	switch eq.Value.(type) {
	case string:
		if typ != FieldText {
			v.addf("field %s compares integers, got a string", eq.Field)
		}
	case int64:
		if typ != FieldInt {
			v.addf("field %s compares strings, got an integer", eq.Field)
		}
	default:
		v.addf("field %s: unsupported value type %T", eq.Field, eq.Value)
	}
}

func (v *validator) validateAtLeast(al AtLeast) {
	typ, ok := Fields[al.Field]
	if !ok {
		v.addf("unknown field %q", al.Field)
		return
	}
	if typ != FieldInt {
		v.addf("field %s is not an integer field", al.Field)
	}
}

// ParseFilter parses "field=value" or "field>=n". Values of integer fields
// must be decimal integers.
func ParseFilter(expr string) (Predicate, error) {
	if field, raw, ok := strings.Cut(expr, ">="); ok {
		field = strings.TrimSpace(field)
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %s needs an integer", expr, field)
		}
		p := AtLeast{Field: field, Min: n}
		if err := Validate(Select{RunID: "-", Filter: p}); err != nil {
			return nil, fmt.Errorf("filter %q: %w", expr, err)
		}
		return p, nil
	}

	field, raw, ok := strings.Cut(expr, "=")
	if !ok {
		return nil, fmt.Errorf("filter %q: want field=value or field>=n", expr)
	}
	field = strings.TrimSpace(field)
	raw = strings.TrimSpace(raw)

	typ, known := Fields[field]
	if !known {
		return nil, fmt.Errorf("filter %q: unknown field %q", expr, field)
	}
	if typ == FieldText {
		return Equals{Field: field, Value: raw}, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %s needs an integer", expr, field)
	}
	return Equals{Field: field, Value: n}, nil
}

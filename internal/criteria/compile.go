// Package criteria compiles user-supplied (key, operator, values) triples
// into storage predicates, accepting only keys registered in a whitelist.
package criteria

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"hotel_search/internal/domain"
)

// Criterion is one client-supplied filter triple.
type Criterion struct {
	Key    string `json:"key"`
	Op     string `json:"op"`
	Values []any  `json:"values"`
}

// Converter turns a raw JSON value into the value stored in the column.
type Converter func(v any) (any, error)

// Field is a filterable key and the column it compiles to.
type Field struct {
	Key            string
	Column         string
	AttributeKeyID int64
	Ops            []domain.Operator
	Convert        Converter
}

func (f Field) permits(op domain.Operator) bool {
	if len(f.Ops) == 0 {
		return true
	}
	for _, o := range f.Ops {
		if o == op {
			return true
		}
	}
	return false
}

// Whitelist is the registry of fields one search context may filter on.
type Whitelist struct {
	name   string
	fields map[string]Field
}

// NewWhitelist fails on duplicate keys.
func NewWhitelist(name string, fields ...Field) (*Whitelist, error) {
	w := &Whitelist{name: name, fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		k := normalizeKey(f.Key)
		if _, dup := w.fields[k]; dup {
			return nil, fmt.Errorf("criteria: duplicate field %q in %s whitelist", f.Key, name)
		}
		f.Key = k
		w.fields[k] = f
	}
	return w, nil
}

func mustWhitelist(name string, fields ...Field) *Whitelist {
	w, err := NewWhitelist(name, fields...)
	if err != nil {
		panic(err)
	}
	return w
}

func (w *Whitelist) Name() string { return w.name }

func (w *Whitelist) Field(key string) (Field, bool) {
	f, ok := w.fields[normalizeKey(key)]
	return f, ok
}

// Keys lists the accepted keys in order.
func (w *Whitelist) Keys() []string {
	out := make([]string, 0, len(w.fields))
	for k := range w.fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Compile ANDs the criteria into one predicate. An empty list yields the
// unrestricted predicate. Any rejected criterion fails the whole list.
func (w *Whitelist) Compile(cs []Criterion) (domain.Predicate, error) {
	var p domain.Predicate
	for i, c := range cs {
		cond, err := w.compileOne(c)
		if err != nil {
			return domain.Predicate{}, fmt.Errorf("criteria[%d]: %w", i, err)
		}
		p.Conditions = append(p.Conditions, cond)
	}
	return p, nil
}

func (w *Whitelist) compileOne(c Criterion) (domain.Condition, error) {
	f, ok := w.Field(c.Key)
	if !ok {
		return domain.Condition{}, domain.InvalidFilter(c.Key, "unknown field for %s search", w.name)
	}
	op, ok := domain.ParseOperator(c.Op)
	if !ok {
		return domain.Condition{}, domain.InvalidFilter(c.Key, "unknown operator %q", c.Op)
	}
	if !f.permits(op) {
		return domain.Condition{}, domain.InvalidFilter(c.Key, "operator %q not allowed", op)
	}
	arity, _ := op.Arity()
	if !arity.Accepts(len(c.Values)) {
		return domain.Condition{}, domain.InvalidFilter(c.Key, "operator %q takes %s, got %d", op, describeArity(arity), len(c.Values))
	}

	values := make([]any, len(c.Values))
	for i, raw := range c.Values {
		if raw == nil {
			return domain.Condition{}, domain.InvalidFilter(c.Key, "null value")
		}
		v := raw
		if f.Convert != nil {
			cv, err := f.Convert(raw)
			if err != nil {
				return domain.Condition{}, domain.InvalidFilter(c.Key, "%v", err)
			}
			v = cv
		}
		if (op == domain.OpLike || op == domain.OpPrefix) && !isString(v) {
			return domain.Condition{}, domain.InvalidFilter(c.Key, "operator %q needs a text value", op)
		}
		values[i] = v
	}
	if op == domain.OpBetween {
		if lt, ok := less(values[1], values[0]); !ok {
			return domain.Condition{}, domain.InvalidFilter(c.Key, "between bounds are not comparable")
		} else if lt {
			return domain.Condition{}, domain.InvalidFilter(c.Key, "between low bound exceeds high bound")
		}
	}
	return domain.Condition{
		Column:         f.Column,
		AttributeKeyID: f.AttributeKeyID,
		Op:             op,
		Values:         values,
	}, nil
}

func describeArity(a domain.Arity) string {
	switch {
	case a.Max < 0:
		return fmt.Sprintf("at least %d value(s)", a.Min)
	case a.Min == a.Max:
		return fmt.Sprintf("exactly %d value(s)", a.Min)
	}
	return fmt.Sprintf("%d to %d values", a.Min, a.Max)
}

func normalizeKey(k string) string { return strings.ToLower(strings.TrimSpace(k)) }

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

// less compares two converted values of the same kind.
func less(a, b any) (bool, bool) {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		return ok && x < y, ok
	case float64:
		y, ok := b.(float64)
		return ok && x < y, ok
	case int:
		y, ok := b.(int)
		return ok && x < y, ok
	case string:
		y, ok := b.(string)
		return ok && x < y, ok
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Before(y), ok
	}
	return false, false
}

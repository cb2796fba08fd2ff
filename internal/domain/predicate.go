package domain

import "strings"

// Operator is a comparison a criterion may apply to a field.
type Operator string

const (
	OpEq      Operator = "eq"
	OpNe      Operator = "ne"
	OpIn      Operator = "in"
	OpBetween Operator = "between"
	OpLike    Operator = "like"   // substring
	OpPrefix  Operator = "prefix" // starts with
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
)

// Arity is the number of values an operator accepts; Max < 0 means unbounded.
type Arity struct{ Min, Max int }

var operatorArity = map[Operator]Arity{
	OpEq:      {1, 1},
	OpNe:      {1, 1},
	OpIn:      {1, -1},
	OpBetween: {2, 2},
	OpLike:    {1, 1},
	OpPrefix:  {1, 1},
	OpGt:      {1, 1},
	OpGte:     {1, 1},
	OpLt:      {1, 1},
	OpLte:     {1, 1},
}

func ParseOperator(s string) (Operator, bool) {
	op := Operator(strings.ToLower(strings.TrimSpace(s)))
	_, ok := operatorArity[op]
	return op, ok
}

func (o Operator) Arity() (Arity, bool) {
	a, ok := operatorArity[o]
	return a, ok
}

// Accepts reports whether n values satisfy the operator's arity.
func (a Arity) Accepts(n int) bool {
	return n >= a.Min && (a.Max < 0 || n <= a.Max)
}

// Condition compares one storage column. Column is always taken from a
// whitelist, never from the request. A non-zero AttributeKeyID scopes the
// comparison to that key's unit_attributes row.
type Condition struct {
	Column         string
	AttributeKeyID int64
	Op             Operator
	Values         []any
}

// Predicate is the AND of its conditions; no conditions means no restriction.
type Predicate struct {
	Conditions []Condition
}

func (p Predicate) Unrestricted() bool { return len(p.Conditions) == 0 }

// And returns a predicate requiring both p and q.
func (p Predicate) And(q Predicate) Predicate {
	out := make([]Condition, 0, len(p.Conditions)+len(q.Conditions))
	out = append(out, p.Conditions...)
	out = append(out, q.Conditions...)
	return Predicate{Conditions: out}
}

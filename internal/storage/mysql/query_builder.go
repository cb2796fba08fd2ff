package mysql

import (
	"fmt"
	"regexp"
	"strings"

	"hotel_search/internal/domain"
	"hotel_search/internal/idset"
)

// Columns reach SQL text only after this check; values always go through args.
var columnRe = regexp.MustCompile(`^([a-z]+\.)?[a-z_]+$`)

var attributeColumns = map[string]bool{"num_value": true, "text_value": true}

type queryBuilder struct {
	conditions []string
	args       []any
}

func newQueryBuilder(base ...string) *queryBuilder {
	return &queryBuilder{conditions: append([]string(nil), base...)}
}

func (qb *queryBuilder) add(cond string, args ...any) {
	qb.conditions = append(qb.conditions, cond)
	qb.args = append(qb.args, args...)
}

// inSet restricts column to s. Unconstrained adds nothing.
func (qb *queryBuilder) inSet(column string, s idset.Set) {
	switch {
	case s.IsUnconstrained():
	case s.IsEmpty():
		qb.add("1 = 0")
	default:
		qb.inList(column, s.IDs())
	}
}

func (qb *queryBuilder) inList(column string, ids []int64) {
	qb.add(column+" IN ("+placeholders(len(ids))+")", int64Args(ids)...)
}

func (qb *queryBuilder) scope(s domain.UnitScope) {
	qb.inSet("u.listing_id", s.Listings)
	qb.inSet("u.id", s.Units)
}

// predicate ANDs every condition of p. Attribute conditions are rendered as
// an EXISTS over unit_attributes correlated with the units alias u.
func (qb *queryBuilder) predicate(p domain.Predicate) error {
	for _, c := range p.Conditions {
		if c.AttributeKeyID != 0 {
			if !attributeColumns[c.Column] {
				return fmt.Errorf("mysql: column %q is not an attribute column", c.Column)
			}
			cmp, args, err := comparison("ua."+c.Column, c.Op, c.Values)
			if err != nil {
				return err
			}
			qb.add(
				"EXISTS (SELECT 1 FROM unit_attributes ua WHERE ua.unit_id = u.id AND ua.attribute_key_id = ? AND "+cmp+")",
				append([]any{c.AttributeKeyID}, args...)...,
			)
			continue
		}
		if !columnRe.MatchString(c.Column) {
			return fmt.Errorf("mysql: refusing column %q", c.Column)
		}
		cmp, args, err := comparison(c.Column, c.Op, c.Values)
		if err != nil {
			return err
		}
		qb.add(cmp, args...)
	}
	return nil
}

func (qb *queryBuilder) where() string {
	if len(qb.conditions) == 0 {
		return ""
	}
	return "\nWHERE " + strings.Join(qb.conditions, "\n  AND ")
}

func comparison(column string, op domain.Operator, values []any) (string, []any, error) {
	if a, ok := op.Arity(); !ok || !a.Accepts(len(values)) {
		return "", nil, fmt.Errorf("mysql: operator %q with %d values", op, len(values))
	}
	switch op {
	case domain.OpEq:
		return column + " = ?", values, nil
	case domain.OpNe:
		return column + " <> ?", values, nil
	case domain.OpGt:
		return column + " > ?", values, nil
	case domain.OpGte:
		return column + " >= ?", values, nil
	case domain.OpLt:
		return column + " < ?", values, nil
	case domain.OpLte:
		return column + " <= ?", values, nil
	case domain.OpIn:
		return column + " IN (" + placeholders(len(values)) + ")", values, nil
	case domain.OpBetween:
		return column + " BETWEEN ? AND ?", values, nil
	case domain.OpLike, domain.OpPrefix:
		s, ok := values[0].(string)
		if !ok {
			return "", nil, fmt.Errorf("mysql: %s needs a string, got %T", op, values[0])
		}
		pattern := escapeLike(s) + "%"
		if op == domain.OpLike {
			pattern = "%" + pattern
		}
		return column + ` LIKE ?`, []any{pattern}, nil
	}
	return "", nil, fmt.Errorf("mysql: unsupported operator %q", op)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

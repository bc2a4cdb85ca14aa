package storage

import (
	"fmt"
	"strings"
)

// Filter is a row predicate. It renders to a parameterized SQL condition for
// queries and mutations, and it can also be evaluated against a decoded
// change-event record so that subscriptions apply the same predicate.
type Filter interface {
	SQL() (string, []any)
	Matches(record map[string]any) bool
}

type eqFilter struct {
	column string
	value  any
}

// Eq matches rows where column equals value.
func Eq(column string, value any) Filter {
	return eqFilter{column: column, value: value}
}

func (f eqFilter) SQL() (string, []any) {
	return f.column + " = ?", []any{f.value}
}

func (f eqFilter) Matches(record map[string]any) bool {
	v, ok := record[f.column]
	if !ok || v == nil {
		return false
	}
	return sameValue(v, f.value)
}

type isNullFilter struct {
	column string
}

// IsNull matches rows where column is NULL.
func IsNull(column string) Filter {
	return isNullFilter{column: column}
}

func (f isNullFilter) SQL() (string, []any) {
	return f.column + " IS NULL", nil
}

func (f isNullFilter) Matches(record map[string]any) bool {
	return record[f.column] == nil
}

type inFilter struct {
	column string
	values []any
}

// In matches rows where column is one of values. An empty list matches nothing.
func In[T any](column string, values []T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return inFilter{column: column, values: vs}
}

func (f inFilter) SQL() (string, []any) {
	if len(f.values) == 0 {
		return "1 = 0", nil
	}
	return f.column + " IN ?", []any{f.values}
}

func (f inFilter) Matches(record map[string]any) bool {
	v, ok := record[f.column]
	if !ok || v == nil {
		return false
	}
	for _, want := range f.values {
		if sameValue(v, want) {
			return true
		}
	}
	return false
}

type junction struct {
	op      string
	filters []Filter
}

// And matches rows satisfying every filter. And() with no filters matches everything.
func And(filters ...Filter) Filter {
	return junction{op: "AND", filters: filters}
}

// Or matches rows satisfying at least one filter. Or() with no filters matches nothing.
func Or(filters ...Filter) Filter {
	return junction{op: "OR", filters: filters}
}

func (j junction) SQL() (string, []any) {
	if len(j.filters) == 0 {
		if j.op == "AND" {
			return "1 = 1", nil
		}
		return "1 = 0", nil
	}
	parts := make([]string, 0, len(j.filters))
	var args []any
	for _, f := range j.filters {
		s, a := f.SQL()
		parts = append(parts, "("+s+")")
		args = append(args, a...)
	}
	return strings.Join(parts, " "+j.op+" "), args
}

func (j junction) Matches(record map[string]any) bool {
	if j.op == "AND" {
		for _, f := range j.filters {
			if !f.Matches(record) {
				return false
			}
		}
		return true
	}
	for _, f := range j.filters {
		if f.Matches(record) {
			return true
		}
	}
	return false
}

// sameValue compares a JSON-decoded value with a filter operand. Decoded
// records only hold strings, float64s and bools, so non-bool operands are
// compared by their printed form.
func sameValue(decoded, operand any) bool {
	if b, ok := operand.(bool); ok {
		db, ok := decoded.(bool)
		return ok && db == b
	}
	return fmt.Sprint(decoded) == fmt.Sprint(operand)
}

// Package core provides the fundamental building blocks of the orm driver layer.
package core

import "sort"

// Conditions maps a field name to the value it must match.
//
// A value can be:
//   - a literal, matched by equality
//   - nil, matched with IS NULL
//   - a slice, matched by membership (IN)
//   - a Comparator, built with Eq, Ne, Gt, Gte, Lt, Lte, Like, NotLike,
//     Between or NotBetween
//
// All entries are combined with AND.
//
// Example:
//
//	conds := core.Conditions{
//		"age":    core.Gte(18),
//		"status": "active",
//		"role":   []any{"admin", "owner"},
//	}
type Conditions map[string]any

// Keys returns the condition fields in lexical order so every driver renders
// the same conditions into the same query.
func (c Conditions) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Comparator wraps a condition value with a comparison operator.
//
// To is only used by the range operators (Between and NotBetween).
type Comparator struct {
	Operator Operator
	Value    any
	To       any
}

// Eq builds an equality comparator (=).
func Eq(v any) Comparator { return Comparator{Operator: OpEq, Value: v} }

// Ne builds an inequality comparator (<>).
func Ne(v any) Comparator { return Comparator{Operator: OpNe, Value: v} }

// Gt builds a "greater than" comparator (>).
func Gt(v any) Comparator { return Comparator{Operator: OpGt, Value: v} }

// Gte builds a "greater than or equal" comparator (>=).
func Gte(v any) Comparator { return Comparator{Operator: OpGte, Value: v} }

// Lt builds a "less than" comparator (<).
func Lt(v any) Comparator { return Comparator{Operator: OpLt, Value: v} }

// Lte builds a "less than or equal" comparator (<=).
func Lte(v any) Comparator { return Comparator{Operator: OpLte, Value: v} }

// Like builds a pattern match comparator using SQL wildcards (% and _).
func Like(pattern string) Comparator { return Comparator{Operator: OpLike, Value: pattern} }

// NotLike builds a negated pattern match comparator.
func NotLike(pattern string) Comparator { return Comparator{Operator: OpNotLike, Value: pattern} }

// Between builds an inclusive range comparator.
func Between(from, to any) Comparator {
	return Comparator{Operator: OpBetween, Value: from, To: to}
}

// NotBetween builds a negated inclusive range comparator.
func NotBetween(from, to any) Comparator {
	return Comparator{Operator: OpNotBetween, Value: from, To: to}
}

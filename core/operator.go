// Package core provides the fundamental building blocks of the orm driver layer.
// This file defines the set of comparison operators used in query conditions.
package core

// Operator represents a comparison operator carried by a Comparator.
type Operator string

const (
	opEq         Operator = "EQ"          // field = value
	opNe         Operator = "NE"          // field <> value
	opGt         Operator = "GT"          // field > value
	opGte        Operator = "GTE"         // field >= value
	opLt         Operator = "LT"          // field < value
	opLte        Operator = "LTE"         // field <= value
	opLike       Operator = "LIKE"        // field LIKE pattern (SQL) or regex (document store)
	opNotLike    Operator = "NOT_LIKE"    // field NOT LIKE pattern
	opBetween    Operator = "BETWEEN"     // field BETWEEN value AND to
	opNotBetween Operator = "NOT_BETWEEN" // field NOT BETWEEN value AND to
)

// Public operator aliases exposed to users of the ORM.
//
// These variables reference the internal constants and are intended to be
// used when inspecting a Comparator inside a custom query builder.
//
// Example:
//
//	if c, ok := value.(core.Comparator); ok && c.Operator == core.OpGt {
//	    // ...
//	}
var (
	OpEq         = opEq
	OpNe         = opNe
	OpGt         = opGt
	OpGte        = opGte
	OpLt         = opLt
	OpLte        = opLte
	OpLike       = opLike
	OpNotLike    = opNotLike
	OpBetween    = opBetween
	OpNotBetween = opNotBetween
)

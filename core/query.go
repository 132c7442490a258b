// Package core provides the fundamental building blocks of the orm driver layer.
// This file defines the options of find and count requests: pagination,
// ordering, joins (merge) and existence subqueries.
package core

import "fmt"

// DescendingCode is the compact direction code that requests descending order.
// Any other code sorts ascending.
const DescendingCode = "Z"

// Order represents an ordering rule used in queries.
//
// Direction is a compact code: "Z" sorts descending, anything else ascending.
type Order struct {
	Field     string
	Direction string
}

// Descending reports whether the rule sorts in descending order.
func (o Order) Descending() bool {
	return o.Direction == DescendingCode
}

// MergeSide names one end of a merge join.
type MergeSide struct {
	Table string
	Field string
}

// MergeSpec describes a join used to traverse an association.
//
// The joined table is From.Table. Rows are joined on
// From.Table.From.Field = <main table>.To.Field. Select lists the fields
// projected from the joined table and Where filters the joined rows.
type MergeSpec struct {
	From   MergeSide
	To     MergeSide
	Select []string
	Where  Conditions
}

// ExistsLink correlates an existence subquery with the main table:
// <subquery table>.Field = <main table>.To.
type ExistsLink struct {
	Field string
	To    string
}

// ExistsSpec describes an existence subquery for one association.
type ExistsSpec struct {
	Association string
	Table       string
	Link        ExistsLink
	Conditions  Conditions
}

// FindOptions encapsulates pagination, ordering and association options for
// find and count requests.
//
// It contains:
//   - Offset: number of rows to skip (0 means none).
//   - Limit: maximum number of rows to return (nil means unbounded).
//   - Order: list of ordering rules to apply.
//   - Merge: optional join against another table.
//   - Exists: existence subqueries, one per association.
//
// Offset without Order does not give a deterministic page; that is the
// caller's responsibility.
type FindOptions struct {
	Offset int
	Limit  *int
	Order  []Order
	Merge  *MergeSpec
	Exists []ExistsSpec
}

// NewFindOptions creates an empty FindOptions ready for chaining.
//
// Example:
//
//	opts := core.NewFindOptions().
//		OrderBy("created_at", "Z").
//		WithLimit(10).
//		WithOffset(20)
func NewFindOptions() *FindOptions {
	return &FindOptions{}
}

// WithOffset sets the number of rows to skip.
func (o *FindOptions) WithOffset(offset int) *FindOptions {
	o.Offset = offset
	return o
}

// WithLimit sets the maximum number of rows to return.
func (o *FindOptions) WithLimit(limit int) *FindOptions {
	o.Limit = &limit
	return o
}

// OrderBy adds an ordering rule. direction "Z" sorts descending.
func (o *FindOptions) OrderBy(field, direction string) *FindOptions {
	o.Order = append(o.Order, Order{Field: field, Direction: direction})
	return o
}

// WithMerge sets the join used to pull associated fields.
func (o *FindOptions) WithMerge(merge MergeSpec) *FindOptions {
	o.Merge = &merge
	return o
}

// WithExists adds an existence subquery.
func (o *FindOptions) WithExists(exists ExistsSpec) *FindOptions {
	o.Exists = append(o.Exists, exists)
	return o
}

// Validate checks the pagination invariants.
func (o *FindOptions) Validate() error {
	if o == nil {
		return nil
	}
	if o.Offset < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", o.Offset)
	}
	if o.Limit != nil && *o.Limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", *o.Limit)
	}
	return nil
}

// HasAssociations reports whether the options request a join or an
// existence subquery.
func (o *FindOptions) HasAssociations() bool {
	return o != nil && (o.Merge != nil || len(o.Exists) > 0)
}

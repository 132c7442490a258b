// Package core provides the fundamental building blocks of the orm driver layer.
// This file defines the unified property vocabulary and the table description
// consumed by the minimal sync contract.
package core

import "sort"

// PropertyType is the unified type tag used to coerce values independently of
// any store's native types.
type PropertyType string

const (
	TypeString  PropertyType = "string"
	TypeNumber  PropertyType = "number"
	TypeBoolean PropertyType = "boolean"
	TypeDate    PropertyType = "date"
	TypeObject  PropertyType = "object"
	TypeBinary  PropertyType = "binary"
)

// Property describes one model property.
//
// Type drives value coercion in both directions. The remaining fields are
// only read by Sync when a table is created.
type Property struct {
	Type     PropertyType // Unified type of the property
	Required bool         // Column is NOT NULL
	Unique   bool         // Column carries a unique constraint/index
	Key      bool         // Column is (part of) the primary key
	Serial   bool         // Column value is generated by the store
	Size     int          // Maximum length for strings (0 = unbounded)
}

// TableSpec describes a table for Sync.
type TableSpec struct {
	Table      string
	Properties map[string]Property
}

// Columns returns the property names with key columns first and the rest in
// lexical order, so DDL is rendered deterministically.
func (s TableSpec) Columns() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ki, kj := s.Properties[names[i]].Key, s.Properties[names[j]].Key
		if ki != kj {
			return ki
		}
		return names[i] < names[j]
	})
	return names
}

// Keys returns the primary key columns in the order of Columns.
func (s TableSpec) Keys() []string {
	var keys []string
	for _, name := range s.Columns() {
		if s.Properties[name].Key {
			keys = append(keys, name)
		}
	}
	return keys
}

// Package core provides the fundamental building blocks of the orm driver layer.
// This file contains the store-agnostic row type and the reflection helpers
// used to map rows onto caller structs.
package core

import (
	"fmt"
	"reflect"
	"strings"
)

// Row is a plain mapping from column/property name to value, produced by the
// result normalizer of every driver.
type Row map[string]any

// Decode maps the row into the struct pointed to by out.
//
// Fields are matched case-insensitively by name or by their `db` tag, with
// support for:
//  1. Exact type matching
//  2. Value → pointer conversions (e.g. time.Time → *time.Time)
//  3. Pointer → value conversions (e.g. *time.Time → time.Time)
//  4. Convertible types (e.g. int64 → int)
//
// Columns without a matching field are ignored.
func (r Row) Decode(out any) error {
	ptr := reflect.ValueOf(out)
	if ptr.Kind() != reflect.Pointer || ptr.IsNil() || ptr.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode: out must be a non-nil pointer to a struct, got %T", out)
	}
	value := ptr.Elem()
	structType := value.Type()

	for rowKey, rowValue := range r {
		field := fieldFor(value, structType, rowKey)
		if !field.IsValid() || !field.CanSet() {
			continue
		}
		if err := assign(field, rowValue); err != nil {
			return fmt.Errorf("decode %s: %w", rowKey, err)
		}
	}
	return nil
}

// fieldFor finds the struct field tagged `db:"name"` or named name.
func fieldFor(value reflect.Value, structType reflect.Type, name string) reflect.Value {
	for _, sf := range reflect.VisibleFields(structType) {
		if tag := sf.Tag.Get("db"); tag != "" && tag == name {
			return value.FieldByIndex(sf.Index)
		}
	}
	return value.FieldByNameFunc(func(fieldName string) bool { return strings.EqualFold(fieldName, name) })
}

func assign(field reflect.Value, rowValue any) error {
	if rowValue == nil {
		// If the field is a pointer, set to nil; otherwise skip
		if field.Kind() == reflect.Pointer {
			field.Set(reflect.Zero(field.Type()))
		}
		return nil
	}

	rv := reflect.ValueOf(rowValue)

	// 1) exact type match
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}

	// 2) value → pointer
	if field.Kind() == reflect.Pointer && rv.Type().AssignableTo(field.Type().Elem()) {
		ptr := reflect.New(field.Type().Elem())
		ptr.Elem().Set(rv)
		field.Set(ptr)
		return nil
	}

	// 3) pointer → value
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Type().Elem().AssignableTo(field.Type()) {
		field.Set(rv.Elem())
		return nil
	}

	// 4) convertible types
	if convertible(rv.Type(), field.Type()) {
		field.Set(rv.Convert(field.Type()))
		return nil
	}
	if field.Kind() == reflect.Pointer && convertible(rv.Type(), field.Type().Elem()) {
		ptr := reflect.New(field.Type().Elem())
		ptr.Elem().Set(rv.Convert(field.Type().Elem()))
		field.Set(ptr)
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", rowValue, field.Type())
}

// convertible rejects the int → string conversion reflect allows (it yields
// a rune, not the decimal text).
func convertible(from, to reflect.Type) bool {
	if to.Kind() == reflect.String && from.Kind() != reflect.String &&
		!(from.Kind() == reflect.Slice && from.Elem().Kind() == reflect.Uint8) {
		return false
	}
	return from.ConvertibleTo(to)
}

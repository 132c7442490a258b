package core

import "fmt"

// ConnectionError represents a connect, close or network failure.
type ConnectionError struct {
	Protocol string
	Cause    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection error: %v", e.Protocol, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// UnknownProtocolError is returned when a protocol name cannot be resolved
// to a driver.
type UnknownProtocolError struct {
	Protocol string
}

func (e *UnknownProtocolError) Error() string {
	return fmt.Sprintf("unknown protocol %q", e.Protocol)
}

// UnsupportedOperationError is returned when a capability is requested from
// a store that cannot provide it, e.g. joins on a document store.
type UnsupportedOperationError struct {
	Protocol  string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: %s is not supported", e.Protocol, e.Operation)
}

// UnsupportedTypeError is returned by Infer when a native column type has no
// property type mapping.
type UnsupportedTypeError struct {
	Table  string
	Column string
	Type   string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unknown type %q found during inference of %s.%s", e.Type, e.Table, e.Column)
}

// QueryError wraps an error raised while building or running a query.
// The store error is kept verbatim as Cause.
type QueryError struct {
	Protocol string
	Query    string
	Cause    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: query error: %v", e.Protocol, e.Cause)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// CoercionError is returned when a value cannot be converted into its stored
// representation. Reads never produce it.
type CoercionError struct {
	Field string
	Value any
	Cause error
}

func (e *CoercionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("cannot coerce %s value %v: %v", e.Field, e.Value, e.Cause)
	}
	return fmt.Sprintf("cannot coerce value %v: %v", e.Value, e.Cause)
}

func (e *CoercionError) Unwrap() error {
	return e.Cause
}

// TaskError reports which task of a sequential run failed.
type TaskError struct {
	Name  string
	Cause error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// Package core provides the fundamental building blocks of the orm driver layer.
// It defines the store-agnostic request shapes, the uniform Driver contract
// and the error kinds every backing store reports.
package core

import "context"

// Changes represents a set of field updates, mapping column names to new values.
// It is typically used in Update operations.
type Changes map[string]any

// QueryBuilder is implemented by the dialect-specific builder a Driver exposes
// through GetQuery. Callers type-assert it to the concrete builder of the store
// they are talking to (for example *sqlquery.Builder or mongodb.QueryBuilder).
type QueryBuilder interface {
	// Dialect returns the protocol name the builder produces queries for.
	Dialect() string
	// Aggregates lists the aggregate functions the store can compute, in
	// upper case. It is empty when the builder cannot render aggregates.
	Aggregates() []string
}

// Driver defines the contract for the backing stores supported by the ORM.
//
// Each driver (postgres, mysql, sqlite, mongodb) implements this interface so
// the model layer can issue the same operations regardless of the store.
// Operations never retry and never apply a timeout of their own: the context
// passed in is the only deadline.
type Driver interface {
	// ID returns the unique identifier assigned to this driver instance.
	ID() string
	// Protocol returns the canonical protocol name (postgres, mysql, sqlite, mongodb).
	Protocol() string

	// Connect establishes the underlying connection.
	// It is a no-op when the driver wraps a caller-supplied handle.
	Connect(ctx context.Context) error
	// Ping issues a trivial query against the store. It is a liveness check:
	// query failures are reported to the error observers, never returned.
	Ping(ctx context.Context) error
	// Close releases the underlying connection. Handles supplied by the caller
	// are never closed.
	Close(ctx context.Context) error
	// On registers a handler for a driver event. Only EventError is emitted.
	On(event Event, handler EventHandler)

	// Find returns the rows of table matching conditions, projected to fields
	// and paginated, ordered, joined and filtered according to options.
	Find(ctx context.Context, fields []string, table string, conditions Conditions, options *FindOptions) ([]Row, error)
	// Count returns the number of rows matching conditions, honoring the
	// merge and exists parts of options and ignoring pagination and order.
	Count(ctx context.Context, table string, conditions Conditions, options *FindOptions) (int64, error)
	// Insert persists data as one row and returns a Row holding the generated
	// identifier under idProperty.
	Insert(ctx context.Context, table string, data Row, idProperty string) (Row, error)
	// Update applies changes to every row matching conditions.
	Update(ctx context.Context, table string, changes Changes, conditions Conditions) error
	// Remove deletes every row matching conditions.
	Remove(ctx context.Context, table string, conditions Conditions) error
	// Clear removes every row of table, truncating where the store supports it.
	Clear(ctx context.Context, table string) error

	// Infer reads the catalog metadata of table and maps every column to a
	// PropertyType. It fails with *UnsupportedTypeError on the first unmapped
	// native type and returns no partial mapping.
	Infer(ctx context.Context, table string) (map[string]PropertyType, error)
	// Sync creates the table described by spec when it does not exist yet.
	Sync(ctx context.Context, spec TableSpec) error
	// Drop removes table when it exists.
	Drop(ctx context.Context, table string) error

	// ValueToProperty converts a stored value into its property representation.
	// It never fails: undecodable values become nil.
	ValueToProperty(value any, property Property) any
	// PropertyToValue converts a property value into its stored representation.
	PropertyToValue(value any, property Property) (any, error)

	// GetQuery exposes the query builder for custom query composition.
	GetQuery() QueryBuilder
	// ExecQuery runs a fully built query and returns its normalized rows.
	ExecQuery(ctx context.Context, query string, args ...any) ([]Row, error)
}

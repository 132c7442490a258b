// Package core provides the fundamental building blocks of the orm driver layer.
// This file defines the statement middleware system, which lets cross-cutting
// concerns (debug logging, metrics) observe every query a driver runs.
package core

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

// Operation represents the driver operation a statement belongs to.
type Operation string

const (
	OperationFind   Operation = "find"
	OperationCount  Operation = "count"
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationRemove Operation = "remove"
	OperationClear  Operation = "clear"
	OperationInfer  Operation = "infer"
	OperationExec   Operation = "exec"
	OperationPing   Operation = "ping"
	OperationSync   Operation = "sync"
	OperationDrop   Operation = "drop"
)

// Statement is a fully built query about to be sent to the store.
//
// Query is the SQL text on relational stores and an extended JSON rendering
// of the filter or command on the document store.
type Statement struct {
	Protocol  string
	Operation Operation
	Table     string
	Query     string
	Args      []any
}

// Handler is the function signature executed for each statement.
type Handler func(ctx context.Context, stmt *Statement) error

// Middleware is a function that wraps a Handler with additional logic.
// Middlewares observe statements; they must not change their semantics.
type Middleware func(next Handler) Handler

// Chain applies the middlewares to the final handler. The first middleware
// of the list is the outermost one.
func Chain(final Handler, middlewares ...Middleware) Handler {
	h := final
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Dispatch executes a statement through the middleware chain.
//
// The exec function contains the store round-trip and is wrapped by the
// registered middlewares.
func Dispatch(ctx context.Context, middlewares []Middleware, stmt *Statement, exec func(ctx context.Context) error) error {
	handler := Chain(func(ctx context.Context, _ *Statement) error {
		return exec(ctx)
	}, middlewares...)
	return handler(ctx, stmt)
}

// DebugMiddleware logs every statement before it is executed and its
// outcome afterwards.
//
// Example:
//
//	opts := core.Options{Middlewares: []core.Middleware{core.DebugMiddleware(logrus.New())}}
func DebugMiddleware(logger logrus.FieldLogger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, stmt *Statement) error {
			entry := logger.WithFields(logrus.Fields{
				"driver": stmt.Protocol,
				"op":     stmt.Operation,
				"args":   stmt.Args,
			})
			entry.Info(stmt.Query)
			start := time.Now()
			err := next(ctx, stmt)
			entry = entry.WithField("took", time.Since(start))
			if err != nil {
				entry.WithError(err).Info("statement failed")
			} else {
				entry.Debug("statement done")
			}
			return err
		}
	}
}

// MetricsMiddleware records statement counts, failures and latency on scope,
// tagged by driver and operation.
func MetricsMiddleware(scope tally.Scope) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, stmt *Statement) error {
			tagged := scope.Tagged(map[string]string{
				"driver": stmt.Protocol,
				"op":     string(stmt.Operation),
			})
			tagged.Counter("statements").Inc(1)
			start := time.Now()
			err := next(ctx, stmt)
			tagged.Timer("statement_latency").Record(time.Since(start))
			if err != nil {
				tagged.Counter("statement_errors").Inc(1)
			}
			return err
		}
	}
}

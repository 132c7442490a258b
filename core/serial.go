// Package core provides the fundamental building blocks of the orm driver layer.
// This file defines the sequential task runner used for multi-table work such
// as syncing every model, one table at a time.
package core

import "context"

// Task is one named unit of sequential work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Serial runs tasks one at a time, in order, and stops at the first failure.
//
// The failing task is reported as *TaskError. A canceled context stops the
// run before the next task starts.
//
// Example:
//
//	err := core.Serial(ctx,
//		core.Task{Name: "users", Run: func(ctx context.Context) error { return driver.Sync(ctx, users) }},
//		core.Task{Name: "pets", Run: func(ctx context.Context) error { return driver.Sync(ctx, pets) }},
//	)
func Serial(ctx context.Context, tasks ...Task) error {
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return &TaskError{Name: task.Name, Cause: err}
		}
		if err := task.Run(ctx); err != nil {
			return &TaskError{Name: task.Name, Cause: err}
		}
	}
	return nil
}

// Collect runs fns one at a time and gathers their results in order. It stops
// at the first failure and returns the results gathered so far along with
// the error.
func Collect[T any](ctx context.Context, fns ...func(ctx context.Context) (T, error)) ([]T, error) {
	results := make([]T, 0, len(fns))
	for _, fn := range fns {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		v, err := fn(ctx)
		if err != nil {
			return results, err
		}
		results = append(results, v)
	}
	return results, nil
}

// Package orm resolves protocol names to drivers and runs schema work
// against them.
package orm

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/leandroluk/orm/core"
	"github.com/leandroluk/orm/driver/mongodb"
	"github.com/leandroluk/orm/driver/postgres"
	"github.com/leandroluk/orm/driver/sqldb"
)

// Constructor builds a driver from config, or around conn when conn is not
// nil. A driver built around conn never closes it.
type Constructor func(config core.ConnectionConfig, conn any, options core.Options) (core.Driver, error)

// aliases maps alternative protocol names to their canonical name.
var aliases = map[string]string{
	"postgresql": "postgres",
	"pg":         "postgres",
	"redshift":   "postgres",
	"mariadb":    "mysql",
	"sqlite3":    "sqlite",
	"mongo":      "mongodb",
}

// constructors is the closed set of supported stores.
var constructors = map[string]Constructor{
	postgres.Protocol: postgres.Open,
	"mysql":           sqldb.Opener(sqldb.MySQL),
	"sqlite":          sqldb.Opener(sqldb.SQLite),
	mongodb.Protocol:  mongodb.Open,
}

// Canonical returns the canonical name of protocol. Unknown names are
// returned lowercased and unchanged.
func Canonical(protocol string) string {
	name := strings.ToLower(strings.TrimSpace(protocol))
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// Resolve returns the constructor registered for protocol or one of its
// aliases.
func Resolve(protocol string) (Constructor, error) {
	constructor, ok := constructors[Canonical(protocol)]
	if !ok {
		return nil, &core.UnknownProtocolError{Protocol: protocol}
	}
	return constructor, nil
}

// Protocols lists the canonical protocol names.
func Protocols() []string {
	return []string{postgres.Protocol, "mysql", "sqlite", mongodb.Protocol}
}

// Create builds a driver for config without connecting it. Options
// carried by config are merged into options.
func Create(config core.ConnectionConfig, options core.Options) (core.Driver, error) {
	constructor, err := Resolve(config.Protocol)
	if err != nil {
		return nil, err
	}
	return constructor(config, nil, merge(config, options))
}

// Connect builds a driver for config and connects it.
func Connect(ctx context.Context, config core.ConnectionConfig, options core.Options) (core.Driver, error) {
	driver, err := Create(config, options)
	if err != nil {
		return nil, err
	}
	if err := driver.Connect(ctx); err != nil {
		return nil, err
	}
	return driver, nil
}

// ConnectURL parses rawURL and connects a driver for it.
func ConnectURL(ctx context.Context, rawURL string, options core.Options) (core.Driver, error) {
	config, err := core.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse connection url")
	}
	return Connect(ctx, config, options)
}

// Use builds a driver around conn, a handle owned by the caller. The driver
// never closes it.
func Use(conn any, protocol string, options core.Options) (core.Driver, error) {
	if conn == nil {
		return nil, &core.ConnectionError{Protocol: protocol, Cause: errors.New("nil connection handle")}
	}
	constructor, err := Resolve(protocol)
	if err != nil {
		return nil, err
	}
	return constructor(core.ConnectionConfig{Protocol: Canonical(protocol)}, conn, options)
}

// Sync creates the tables of specs one at a time, in order, stopping at the
// first failure.
func Sync(ctx context.Context, driver core.Driver, specs ...core.TableSpec) error {
	tasks := make([]core.Task, len(specs))
	for i, spec := range specs {
		tasks[i] = core.Task{Name: spec.Table, Run: func(ctx context.Context) error {
			return driver.Sync(ctx, spec)
		}}
	}
	return core.Serial(ctx, tasks...)
}

// Drop removes tables one at a time, in order, stopping at the first failure.
func Drop(ctx context.Context, driver core.Driver, tables ...string) error {
	tasks := make([]core.Task, len(tables))
	for i, table := range tables {
		tasks[i] = core.Task{Name: table, Run: func(ctx context.Context) error {
			return driver.Drop(ctx, table)
		}}
	}
	return core.Serial(ctx, tasks...)
}

func merge(config core.ConnectionConfig, options core.Options) core.Options {
	options.Debug = options.Debug || config.Debug
	options.Pool = options.Pool || config.Pool
	return options
}

package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/leandroluk/orm/core"
	"github.com/leandroluk/orm/driver/sqlquery"
)

// Conn is the sqlx surface used by the driver. *sqlx.DB and *sqlx.Tx both
// satisfy it.
type Conn interface {
	sqlx.ExtContext
}

//region SQLDriver

// SQLDriver implements core.Driver for one database/sql flavor.
//
// A driver built with New owns its *sqlx.DB and closes it on Close. A driver
// built with Wrap never closes the caller's handle.
type SQLDriver struct {
	core.TextCodec

	id          string
	flavor      Flavor
	config      core.ConnectionConfig
	options     core.Options
	middlewares []core.Middleware
	builder     *sqlquery.Builder
	events      core.Events

	conn  Conn
	db    *sqlx.DB
	owned bool
}

var _ core.Driver = (*SQLDriver)(nil)

// New creates a driver that opens its own database handle on Connect.
func New(flavor Flavor, config core.ConnectionConfig, options core.Options) *SQLDriver {
	d := newDriver(flavor, options)
	d.config = config
	d.owned = true
	return d
}

// Wrap creates a driver bound to a caller-supplied handle.
func Wrap(flavor Flavor, conn Conn, options core.Options) *SQLDriver {
	d := newDriver(flavor, options)
	d.conn = conn
	return d
}

// Opener returns the registry constructor of flavor. A *sql.DB handle is
// wrapped with sqlx using the flavor's driver name.
func Opener(flavor Flavor) func(config core.ConnectionConfig, conn any, options core.Options) (core.Driver, error) {
	return func(config core.ConnectionConfig, conn any, options core.Options) (core.Driver, error) {
		switch c := conn.(type) {
		case nil:
			return New(flavor, config, options), nil
		case *sql.DB:
			return Wrap(flavor, sqlx.NewDb(c, flavor.DriverName), options), nil
		case Conn:
			return Wrap(flavor, c, options), nil
		default:
			return nil, &core.ConnectionError{Protocol: flavor.Dialect.Name, Cause: fmt.Errorf("unsupported connection handle %T", conn)}
		}
	}
}

func newDriver(flavor Flavor, options core.Options) *SQLDriver {
	options = options.WithDefaults()
	return &SQLDriver{
		id:          uuid.NewString(),
		flavor:      flavor,
		options:     options,
		middlewares: options.Chain(),
		builder:     sqlquery.New(flavor.Dialect),
	}
}

func (d *SQLDriver) ID() string { return d.id }

func (d *SQLDriver) Protocol() string { return d.flavor.Dialect.Name }

func (d *SQLDriver) Connect(ctx context.Context) error {
	if !d.owned || d.db != nil {
		return nil
	}
	db, err := sqlx.Open(d.flavor.DriverName, d.flavor.DSN(d.config))
	if err != nil {
		return &core.ConnectionError{Protocol: d.Protocol(), Cause: err}
	}
	if d.flavor.SingleConn || !d.options.Pool {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return d.connectionError(err)
	}
	d.db = db
	d.conn = db
	return nil
}

func (d *SQLDriver) Ping(ctx context.Context) error {
	if err := d.exec(ctx, core.OperationPing, "", d.flavor.PingQuery, nil); err != nil {
		d.options.Logger.WithError(err).Debugf("%s ping failed", d.Protocol())
	}
	return nil
}

func (d *SQLDriver) Close(ctx context.Context) error {
	if !d.owned || d.db == nil {
		return nil
	}
	db := d.db
	d.db = nil
	d.conn = nil
	if err := db.Close(); err != nil {
		return &core.ConnectionError{Protocol: d.Protocol(), Cause: err}
	}
	return nil
}

func (d *SQLDriver) On(event core.Event, handler core.EventHandler) {
	d.events.On(event, handler)
}

func (d *SQLDriver) Find(ctx context.Context, fields []string, table string, conditions core.Conditions, options *core.FindOptions) ([]core.Row, error) {
	sqlQuery, args, err := d.builder.Select(fields, table, conditions, options)
	if err != nil {
		return nil, &core.QueryError{Protocol: d.Protocol(), Cause: err}
	}
	return d.query(ctx, core.OperationFind, table, sqlQuery, args)
}

func (d *SQLDriver) Count(ctx context.Context, table string, conditions core.Conditions, options *core.FindOptions) (int64, error) {
	sqlQuery, args, err := d.builder.Count(table, conditions, options)
	if err != nil {
		return 0, &core.QueryError{Protocol: d.Protocol(), Cause: err}
	}
	var count int64
	err = d.dispatch(ctx, core.OperationCount, table, sqlQuery, args, func(ctx context.Context) error {
		conn, err := d.handle()
		if err != nil {
			return err
		}
		return conn.QueryRowxContext(ctx, sqlQuery, args...).Scan(&count)
	})
	return count, err
}

// Insert persists data. The reported identifier is the value supplied in
// data, or the store generated one when the key is a serial column.
func (d *SQLDriver) Insert(ctx context.Context, table string, data core.Row, idProperty string) (core.Row, error) {
	sqlQuery, args, err := d.builder.Insert(table, data)
	if err != nil {
		return nil, &core.QueryError{Protocol: d.Protocol(), Cause: err}
	}
	var result sql.Result
	err = d.dispatch(ctx, core.OperationInsert, table, sqlQuery, args, func(ctx context.Context) error {
		conn, err := d.handle()
		if err != nil {
			return err
		}
		result, err = conn.ExecContext(ctx, sqlQuery, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	if id, ok := data[idProperty]; ok && id != nil {
		return core.Row{idProperty: id}, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return core.Row{idProperty: nil}, nil
	}
	return core.Row{idProperty: id}, nil
}

func (d *SQLDriver) Update(ctx context.Context, table string, changes core.Changes, conditions core.Conditions) error {
	sqlQuery, args, err := d.builder.Update(table, changes, conditions)
	if err != nil {
		return &core.QueryError{Protocol: d.Protocol(), Cause: err}
	}
	return d.exec(ctx, core.OperationUpdate, table, sqlQuery, args)
}

func (d *SQLDriver) Remove(ctx context.Context, table string, conditions core.Conditions) error {
	sqlQuery, args, err := d.builder.Delete(table, conditions)
	if err != nil {
		return &core.QueryError{Protocol: d.Protocol(), Cause: err}
	}
	return d.exec(ctx, core.OperationRemove, table, sqlQuery, args)
}

func (d *SQLDriver) Clear(ctx context.Context, table string) error {
	return d.exec(ctx, core.OperationClear, table, d.builder.Truncate(table), nil)
}

func (d *SQLDriver) Infer(ctx context.Context, table string) (map[string]core.PropertyType, error) {
	rowList, err := d.query(ctx, core.OperationInfer, table, d.flavor.InferQuery, []any{table})
	if err != nil {
		return nil, err
	}
	columns, err := sqlquery.DecodeColumns(rowList)
	if err != nil {
		return nil, &core.QueryError{Protocol: d.Protocol(), Cause: err}
	}
	return sqlquery.InferProperties(table, columns)
}

func (d *SQLDriver) Sync(ctx context.Context, spec core.TableSpec) error {
	sqlQuery, err := d.builder.CreateTable(spec)
	if err != nil {
		return &core.QueryError{Protocol: d.Protocol(), Cause: err}
	}
	return d.exec(ctx, core.OperationSync, spec.Table, sqlQuery, nil)
}

func (d *SQLDriver) Drop(ctx context.Context, table string) error {
	return d.exec(ctx, core.OperationDrop, table, d.builder.DropTable(table), nil)
}

func (d *SQLDriver) GetQuery() core.QueryBuilder {
	return d.builder
}

func (d *SQLDriver) ExecQuery(ctx context.Context, query string, args ...any) ([]core.Row, error) {
	return d.query(ctx, core.OperationExec, "", query, args)
}

//endregion

//region execution

func (d *SQLDriver) handle() (Conn, error) {
	if d.conn == nil {
		return nil, &core.ConnectionError{Protocol: d.Protocol(), Cause: errors.New("not connected")}
	}
	return d.conn, nil
}

func (d *SQLDriver) dispatch(ctx context.Context, op core.Operation, table, sqlQuery string, args []any, fn func(ctx context.Context) error) error {
	stmt := &core.Statement{Protocol: d.Protocol(), Operation: op, Table: table, Query: sqlQuery, Args: args}
	if err := core.Dispatch(ctx, d.middlewares, stmt, fn); err != nil {
		return d.classify(sqlQuery, err)
	}
	return nil
}

func (d *SQLDriver) exec(ctx context.Context, op core.Operation, table, sqlQuery string, args []any) error {
	return d.dispatch(ctx, op, table, sqlQuery, args, func(ctx context.Context) error {
		conn, err := d.handle()
		if err != nil {
			return err
		}
		_, err = conn.ExecContext(ctx, sqlQuery, args...)
		return err
	})
}

func (d *SQLDriver) query(ctx context.Context, op core.Operation, table, sqlQuery string, args []any) ([]core.Row, error) {
	var rowList []core.Row
	err := d.dispatch(ctx, op, table, sqlQuery, args, func(ctx context.Context) error {
		conn, err := d.handle()
		if err != nil {
			return err
		}
		rows, err := conn.QueryxContext(ctx, sqlQuery, args...)
		if err != nil {
			return err
		}
		rowList, err = normalizeRows(rows)
		return err
	})
	return rowList, err
}

func (d *SQLDriver) classify(sqlQuery string, err error) error {
	var connErr *core.ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	if isConnectionError(err) {
		return d.connectionError(err)
	}
	return &core.QueryError{Protocol: d.Protocol(), Query: sqlQuery, Cause: err}
}

func (d *SQLDriver) connectionError(err error) error {
	wrapped := &core.ConnectionError{Protocol: d.Protocol(), Cause: err}
	d.events.Emit(core.EventError, wrapped)
	return wrapped
}

func isConnectionError(err error) bool {
	var netErr net.Error
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.As(err, &netErr)
}

//endregion

package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leandroluk/orm/core"
	"github.com/leandroluk/orm/driver/sqlquery"
)

// Protocol is the canonical protocol name of this driver.
const Protocol = "postgres"

const (
	pingQuery  = "SELECT * FROM pg_stat_activity LIMIT 1"
	inferQuery = "SELECT column_name::text AS column_name, data_type::text AS column_type FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position"
)

// Conn is the subset of pgx used by the driver. *pgxpool.Pool, *pgx.Conn and
// pgx.Tx all satisfy it, so a caller can hand over any of them.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

//region PostgresDriver

// PostgresDriver implements core.Driver on top of pgx.
//
// A driver built with New owns its pool and closes it on Close. A driver
// built with Wrap only references the caller's handle and never closes it.
// Closing an owned driver twice is a no-op.
type PostgresDriver struct {
	core.TextCodec

	id          string
	config      core.ConnectionConfig
	options     core.Options
	middlewares []core.Middleware
	builder     *sqlquery.Builder
	events      core.Events

	conn  Conn
	pool  *pgxpool.Pool
	owned bool
}

var _ core.Driver = (*PostgresDriver)(nil)

// New creates a driver that opens its own pool on Connect.
func New(config core.ConnectionConfig, options core.Options) *PostgresDriver {
	driver := newDriver(options)
	driver.config = config
	driver.owned = true
	return driver
}

// Wrap creates a driver bound to a caller-supplied connection handle.
func Wrap(conn Conn, options core.Options) *PostgresDriver {
	driver := newDriver(options)
	driver.conn = conn
	return driver
}

// Open is the registry constructor: it wraps conn when given, otherwise it
// prepares a driver for config.
func Open(config core.ConnectionConfig, conn any, options core.Options) (core.Driver, error) {
	if conn == nil {
		return New(config, options), nil
	}
	c, ok := conn.(Conn)
	if !ok {
		return nil, &core.ConnectionError{Protocol: Protocol, Cause: fmt.Errorf("unsupported connection handle %T", conn)}
	}
	return Wrap(c, options), nil
}

func newDriver(options core.Options) *PostgresDriver {
	options = options.WithDefaults()
	return &PostgresDriver{
		id:          uuid.NewString(),
		options:     options,
		middlewares: options.Chain(),
		builder:     sqlquery.New(sqlquery.Postgres),
	}
}

func (driver *PostgresDriver) ID() string { return driver.id }

func (driver *PostgresDriver) Protocol() string { return Protocol }

func (driver *PostgresDriver) Connect(ctx context.Context) error {
	if !driver.owned || driver.pool != nil {
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(connString(driver.config))
	if err != nil {
		return &core.ConnectionError{Protocol: Protocol, Cause: err}
	}
	if !driver.options.Pool {
		poolConfig.MaxConns = 1
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return driver.connectionError(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return driver.connectionError(err)
	}
	driver.pool = pool
	driver.conn = pool
	return nil
}

func (driver *PostgresDriver) Ping(ctx context.Context) error {
	if err := driver.exec(ctx, core.OperationPing, "", pingQuery, nil); err != nil {
		driver.options.Logger.WithError(err).Debug("postgres ping failed")
	}
	return nil
}

func (driver *PostgresDriver) Close(ctx context.Context) error {
	if driver.owned && driver.pool != nil {
		driver.pool.Close()
	}
	return nil
}

func (driver *PostgresDriver) On(event core.Event, handler core.EventHandler) {
	driver.events.On(event, handler)
}

func (driver *PostgresDriver) Find(ctx context.Context, fields []string, table string, conditions core.Conditions, options *core.FindOptions) ([]core.Row, error) {
	sqlQuery, args, err := driver.builder.Select(fields, table, conditions, options)
	if err != nil {
		return nil, &core.QueryError{Protocol: Protocol, Cause: err}
	}
	return driver.query(ctx, core.OperationFind, table, sqlQuery, args)
}

func (driver *PostgresDriver) Count(ctx context.Context, table string, conditions core.Conditions, options *core.FindOptions) (int64, error) {
	sqlQuery, args, err := driver.builder.Count(table, conditions, options)
	if err != nil {
		return 0, &core.QueryError{Protocol: Protocol, Cause: err}
	}
	var count int64
	err = driver.dispatch(ctx, core.OperationCount, table, sqlQuery, args, func(ctx context.Context) error {
		conn, err := driver.handle()
		if err != nil {
			return err
		}
		return conn.QueryRow(ctx, sqlQuery, args...).Scan(&count)
	})
	return count, err
}

func (driver *PostgresDriver) Insert(ctx context.Context, table string, data core.Row, idProperty string) (core.Row, error) {
	sqlQuery, args, err := driver.builder.Insert(table, data)
	if err != nil {
		return nil, &core.QueryError{Protocol: Protocol, Cause: err}
	}
	rowList, err := driver.query(ctx, core.OperationInsert, table, sqlQuery, args)
	if err != nil {
		return nil, err
	}
	var id any
	if len(rowList) > 0 {
		id = rowList[0][idProperty]
	}
	return core.Row{idProperty: id}, nil
}

func (driver *PostgresDriver) Update(ctx context.Context, table string, changes core.Changes, conditions core.Conditions) error {
	sqlQuery, args, err := driver.builder.Update(table, changes, conditions)
	if err != nil {
		return &core.QueryError{Protocol: Protocol, Cause: err}
	}
	return driver.exec(ctx, core.OperationUpdate, table, sqlQuery, args)
}

func (driver *PostgresDriver) Remove(ctx context.Context, table string, conditions core.Conditions) error {
	sqlQuery, args, err := driver.builder.Delete(table, conditions)
	if err != nil {
		return &core.QueryError{Protocol: Protocol, Cause: err}
	}
	return driver.exec(ctx, core.OperationRemove, table, sqlQuery, args)
}

func (driver *PostgresDriver) Clear(ctx context.Context, table string) error {
	return driver.exec(ctx, core.OperationClear, table, driver.builder.Truncate(table), nil)
}

func (driver *PostgresDriver) Infer(ctx context.Context, table string) (map[string]core.PropertyType, error) {
	rowList, err := driver.query(ctx, core.OperationInfer, table, inferQuery, []any{table})
	if err != nil {
		return nil, err
	}
	columns, err := sqlquery.DecodeColumns(rowList)
	if err != nil {
		return nil, &core.QueryError{Protocol: Protocol, Cause: err}
	}
	return sqlquery.InferProperties(table, columns)
}

func (driver *PostgresDriver) Sync(ctx context.Context, spec core.TableSpec) error {
	sqlQuery, err := driver.builder.CreateTable(spec)
	if err != nil {
		return &core.QueryError{Protocol: Protocol, Cause: err}
	}
	return driver.exec(ctx, core.OperationSync, spec.Table, sqlQuery, nil)
}

func (driver *PostgresDriver) Drop(ctx context.Context, table string) error {
	return driver.exec(ctx, core.OperationDrop, table, driver.builder.DropTable(table), nil)
}

func (driver *PostgresDriver) GetQuery() core.QueryBuilder {
	return driver.builder
}

func (driver *PostgresDriver) ExecQuery(ctx context.Context, query string, args ...any) ([]core.Row, error) {
	return driver.query(ctx, core.OperationExec, "", query, args)
}

//endregion

//region execution

func (driver *PostgresDriver) handle() (Conn, error) {
	if driver.conn == nil {
		return nil, &core.ConnectionError{Protocol: Protocol, Cause: errors.New("not connected")}
	}
	return driver.conn, nil
}

func (driver *PostgresDriver) dispatch(ctx context.Context, op core.Operation, table, sqlQuery string, args []any, fn func(ctx context.Context) error) error {
	stmt := &core.Statement{Protocol: Protocol, Operation: op, Table: table, Query: sqlQuery, Args: args}
	if err := core.Dispatch(ctx, driver.middlewares, stmt, fn); err != nil {
		return driver.classify(sqlQuery, err)
	}
	return nil
}

func (driver *PostgresDriver) exec(ctx context.Context, op core.Operation, table, sqlQuery string, args []any) error {
	return driver.dispatch(ctx, op, table, sqlQuery, args, func(ctx context.Context) error {
		conn, err := driver.handle()
		if err != nil {
			return err
		}
		_, err = conn.Exec(ctx, sqlQuery, args...)
		return err
	})
}

func (driver *PostgresDriver) query(ctx context.Context, op core.Operation, table, sqlQuery string, args []any) ([]core.Row, error) {
	var rowList []core.Row
	err := driver.dispatch(ctx, op, table, sqlQuery, args, func(ctx context.Context) error {
		conn, err := driver.handle()
		if err != nil {
			return err
		}
		rows, err := conn.Query(ctx, sqlQuery, args...)
		if err != nil {
			return err
		}
		rowList, err = normalizeRows(rows)
		return err
	})
	return rowList, err
}

// classify turns a store error into a ConnectionError (reported to the
// error observers) or a QueryError carrying the store error verbatim.
func (driver *PostgresDriver) classify(sqlQuery string, err error) error {
	var connErr *core.ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	if isConnectionError(err) {
		return driver.connectionError(err)
	}
	return &core.QueryError{Protocol: Protocol, Query: sqlQuery, Cause: err}
}

func (driver *PostgresDriver) connectionError(err error) error {
	wrapped := &core.ConnectionError{Protocol: Protocol, Cause: err}
	driver.events.Emit(core.EventError, wrapped)
	return wrapped
}

func isConnectionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	var connectErr *pgconn.ConnectError
	var netErr net.Error
	return errors.As(err, &connectErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

//endregion

//region Helpers

// connString renders config as a libpq URL understood by pgxpool.ParseConfig.
func connString(config core.ConnectionConfig) string {
	query := url.Values{}
	for k, v := range config.Query {
		query.Set(k, v)
	}
	if config.TLS {
		query.Set("sslmode", "require")
	} else if !query.Has("sslmode") {
		query.Set("sslmode", "disable")
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(config.HostOr("localhost"), strconv.Itoa(config.PortOr(5432))),
		Path:     "/" + config.Database,
		RawQuery: query.Encode(),
	}
	if config.User != "" {
		u.User = url.UserPassword(config.User, config.Password)
	}
	return u.String()
}

//endregion

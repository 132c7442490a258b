// Package sqldb implements the relational driver for the stores reached
// through database/sql: MySQL (and MariaDB) and SQLite.
package sqldb

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 database/sql driver

	"github.com/leandroluk/orm/core"
	"github.com/leandroluk/orm/driver/sqlquery"
)

// Flavor describes one database/sql backed store.
type Flavor struct {
	// Dialect renders the statements of the store.
	Dialect sqlquery.Dialect
	// DriverName is the database/sql driver name.
	DriverName string
	// DSN renders a connection config as a data source name.
	DSN func(config core.ConnectionConfig) string
	// PingQuery is the trivial query issued by Ping.
	PingQuery string
	// InferQuery lists column_name/column_type of the table bound as its only parameter.
	InferQuery string
	// SingleConn forces one open connection regardless of Options.Pool.
	SingleConn bool
}

// MySQL is the MySQL/MariaDB flavor.
var MySQL = Flavor{
	Dialect:    sqlquery.MySQL,
	DriverName: "mysql",
	PingQuery:  "SELECT 1",
	InferQuery: "SELECT COLUMN_NAME AS column_name, COLUMN_TYPE AS column_type FROM information_schema.columns " +
		"WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position",
	DSN: func(config core.ConnectionConfig) string {
		cfg := mysql.NewConfig()
		cfg.User = config.User
		cfg.Passwd = config.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(config.HostOr("localhost"), strconv.Itoa(config.PortOr(3306)))
		cfg.DBName = config.Database
		cfg.ParseTime = true
		if config.TLS {
			cfg.TLSConfig = "true"
		}
		if len(config.Query) > 0 {
			cfg.Params = make(map[string]string, len(config.Query))
			for k, v := range config.Query {
				cfg.Params[k] = v
			}
		}
		return cfg.FormatDSN()
	},
}

// SQLite is the SQLite flavor. An empty database selects an in-memory store.
var SQLite = Flavor{
	Dialect:    sqlquery.SQLite,
	DriverName: "sqlite3",
	PingQuery:  "SELECT 1",
	InferQuery: "SELECT name AS column_name, type AS column_type FROM pragma_table_info(?) ORDER BY cid",
	SingleConn: true,
	DSN: func(config core.ConnectionConfig) string {
		if config.Database == "" {
			return ":memory:"
		}
		return config.Database
	},
}

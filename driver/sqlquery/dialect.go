// Package sqlquery builds parameterized SQL statements from store-agnostic
// find/count/insert/update/remove requests for the relational drivers.
package sqlquery

import (
	"math"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/leandroluk/orm/core"
)

// Dialect captures what differs between the relational stores.
type Dialect struct {
	// Name is the canonical protocol name.
	Name string
	// Placeholder renders bound parameters ($1 or ?).
	Placeholder sq.PlaceholderFormat
	// Returning appends RETURNING * to inserts.
	Returning bool
	// Truncate is the statement prefix used by Clear.
	Truncate string
	// EmptyInsert completes an INSERT INTO <table> without columns.
	EmptyInsert string
	// MaxLimit is rendered as LIMIT when an offset is requested without a
	// limit on stores that reject a bare OFFSET. Zero means not needed.
	MaxLimit uint64
	// InlineSerialKey renders a serial primary key inline (sqlite).
	InlineSerialKey bool
	// Aggregates lists the functions Builder.Aggregate accepts.
	Aggregates []string

	quote      func(name string) string
	columnType func(p core.Property) string
}

// Quote quotes an identifier, or a qualified identifier when several parts
// are given.
func (d Dialect) Quote(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = d.quote(part)
	}
	return strings.Join(quoted, ".")
}

// ColumnType returns the native column type used by Sync for p.
func (d Dialect) ColumnType(p core.Property) string {
	return d.columnType(p)
}

// Postgres is the PostgreSQL (and Redshift) dialect.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: Dollar,
	Returning:   true,
	Truncate:    "TRUNCATE TABLE ",
	EmptyInsert: "DEFAULT VALUES",
	Aggregates: []string{
		"ABS", "CEIL", "FLOOR", "ROUND",
		"AVG", "MIN", "MAX",
		"LOG", "EXP", "POWER",
		"ACOS", "ASIN", "ATAN", "COS", "SIN", "TAN",
		"RANDOM", "RADIANS", "DEGREES",
		"SUM", "COUNT",
	},
	quote: func(name string) string {
		return pgx.Identifier{name}.Sanitize()
	},
	columnType: func(p core.Property) string {
		switch p.Type {
		case core.TypeNumber:
			if p.Serial {
				return "SERIAL"
			}
			return "DOUBLE PRECISION"
		case core.TypeBoolean:
			return "BOOLEAN"
		case core.TypeDate:
			return "TIMESTAMP WITH TIME ZONE"
		case core.TypeBinary:
			return "BYTEA"
		case core.TypeObject:
			return "TEXT"
		default:
			return varchar(p, "TEXT")
		}
	},
}

// MySQL is the MySQL/MariaDB dialect.
var MySQL = Dialect{
	Name:        "mysql",
	Placeholder: sq.Question,
	Truncate:    "TRUNCATE TABLE ",
	EmptyInsert: "() VALUES ()",
	MaxLimit:    math.MaxUint64,
	Aggregates: []string{
		"ABS", "CEIL", "FLOOR", "ROUND",
		"AVG", "MIN", "MAX",
		"LOG", "LOG2", "LOG10", "EXP", "POWER",
		"ACOS", "ASIN", "ATAN", "COS", "SIN", "TAN",
		"CONV", "RAND", "RADIANS", "DEGREES",
		"SUM", "COUNT",
	},
	quote: func(name string) string {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	},
	columnType: func(p core.Property) string {
		switch p.Type {
		case core.TypeNumber:
			if p.Serial {
				return "INTEGER AUTO_INCREMENT"
			}
			return "DOUBLE"
		case core.TypeBoolean:
			return "BOOLEAN"
		case core.TypeDate:
			return "DATETIME"
		case core.TypeBinary:
			return "BLOB"
		case core.TypeObject:
			return "TEXT"
		default:
			if p.Size == 0 && (p.Key || p.Unique) {
				return "VARCHAR(255)"
			}
			return varchar(p, "TEXT")
		}
	},
}

// SQLite is the SQLite dialect.
var SQLite = Dialect{
	Name:            "sqlite",
	Placeholder:     sq.Question,
	Truncate:        "DELETE FROM ",
	EmptyInsert:     "DEFAULT VALUES",
	MaxLimit:        math.MaxInt64,
	InlineSerialKey: true,
	Aggregates:      []string{"ABS", "ROUND", "AVG", "MIN", "MAX", "RANDOM", "SUM", "COUNT"},
	quote: func(name string) string {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	},
	columnType: func(p core.Property) string {
		switch p.Type {
		case core.TypeNumber:
			if p.Serial {
				return "INTEGER"
			}
			return "REAL"
		case core.TypeBoolean:
			return "BOOLEAN"
		case core.TypeDate:
			return "DATETIME"
		case core.TypeBinary:
			return "BLOB"
		default:
			return "TEXT"
		}
	},
}

// Dollar numbers the ? placeholders of a statement as $1, $2... It skips
// quoted identifiers and string literals, so a column named "ok?" keeps its
// name and does not consume an argument.
var Dollar sq.PlaceholderFormat = dollarFormat{}

type dollarFormat struct{}

func (dollarFormat) ReplacePlaceholders(sql string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(sql) + 8)
	n := 0
	var quote rune
	for _, r := range sql {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '?':
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}

func varchar(p core.Property, unbounded string) string {
	if p.Size > 0 {
		return "VARCHAR(" + strconv.Itoa(p.Size) + ")"
	}
	return unbounded
}

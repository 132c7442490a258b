package sqlquery

import (
	"strings"

	"github.com/leandroluk/orm/core"
)

// nativeTypes is the closed mapping from native column types to property
// types. Anything not listed fails inference.
var nativeTypes = map[string]core.PropertyType{
	"int":              core.TypeNumber,
	"integer":          core.TypeNumber,
	"smallint":         core.TypeNumber,
	"mediumint":        core.TypeNumber,
	"bigint":           core.TypeNumber,
	"int2":             core.TypeNumber,
	"int4":             core.TypeNumber,
	"int8":             core.TypeNumber,
	"decimal":          core.TypeNumber,
	"numeric":          core.TypeNumber,
	"real":             core.TypeNumber,
	"float":            core.TypeNumber,
	"double":           core.TypeNumber,
	"double precision": core.TypeNumber,

	"varchar":           core.TypeString,
	"character varying": core.TypeString,
	"char":              core.TypeString,
	"character":         core.TypeString,
	"text":              core.TypeString,
	"tinytext":          core.TypeString,
	"mediumtext":        core.TypeString,
	"longtext":          core.TypeString,
	"uuid":              core.TypeString,

	"boolean": core.TypeBoolean,
	"bool":    core.TypeBoolean,

	"date":                        core.TypeDate,
	"datetime":                    core.TypeDate,
	"timestamp":                   core.TypeDate,
	"timestamp without time zone": core.TypeDate,
	"timestamp with time zone":    core.TypeDate,
	"timestamptz":                 core.TypeDate,

	"json":  core.TypeObject,
	"jsonb": core.TypeObject,

	"bytea":     core.TypeBinary,
	"blob":      core.TypeBinary,
	"longblob":  core.TypeBinary,
	"binary":    core.TypeBinary,
	"varbinary": core.TypeBinary,
}

// PropertyTypeOf maps a native column type, as reported by a catalog, to a
// property type. Length and sign modifiers are ignored ("varchar(100)",
// "int unsigned"); "tinyint(1)" is the MySQL boolean.
func PropertyTypeOf(native string) (core.PropertyType, bool) {
	name := strings.ToLower(strings.TrimSpace(native))
	if name == "tinyint(1)" {
		return core.TypeBoolean, true
	}
	if i := strings.IndexByte(name, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(name[i:], ')'); j >= 0 {
			rest = name[i+j+1:]
		}
		name = strings.TrimSpace(name[:i] + rest)
	}
	name = strings.TrimSpace(strings.TrimSuffix(name, " unsigned"))
	t, ok := nativeTypes[name]
	return t, ok
}

// Column is one catalog row read by Infer. Catalog queries alias their
// columns to column_name and column_type.
type Column struct {
	Name string `db:"column_name"`
	Type string `db:"column_type"`
}

// DecodeColumns maps normalized catalog rows onto Columns.
func DecodeColumns(rows []core.Row) ([]Column, error) {
	columns := make([]Column, len(rows))
	for i, row := range rows {
		if err := row.Decode(&columns[i]); err != nil {
			return nil, err
		}
	}
	return columns, nil
}

// InferProperties maps every column of table to its property type. The first
// unmapped type aborts with *core.UnsupportedTypeError and no partial result.
func InferProperties(table string, columns []Column) (map[string]core.PropertyType, error) {
	properties := make(map[string]core.PropertyType, len(columns))
	for _, column := range columns {
		t, ok := PropertyTypeOf(column.Type)
		if !ok {
			return nil, &core.UnsupportedTypeError{Table: table, Column: column.Name, Type: column.Type}
		}
		properties[column.Name] = t
	}
	return properties, nil
}

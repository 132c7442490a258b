package sqldb

import (
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/leandroluk/orm/core"
)

// normalizeRows drains rows into plain row mappings and closes them.
func normalizeRows(rows *sqlx.Rows) ([]core.Row, error) {
	defer rows.Close()

	columnTypeList, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	typeOf := make(map[string]string, len(columnTypeList))
	for _, column := range columnTypeList {
		typeOf[column.Name()] = strings.ToUpper(column.DatabaseTypeName())
	}

	resultList := []core.Row{}
	for rows.Next() {
		raw := map[string]any{}
		if err := rows.MapScan(raw); err != nil {
			return nil, err
		}
		row := make(core.Row, len(raw))
		for name, value := range raw {
			row[name] = normalizeValue(typeOf[name], value)
		}
		resultList = append(resultList, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return resultList, nil
}

// normalizeValue converts the raw bytes database/sql hands back for textual
// and numeric columns. Binary columns keep their bytes.
func normalizeValue(databaseType string, value any) any {
	b, ok := value.([]byte)
	if !ok {
		return value
	}
	base := databaseType
	if i := strings.IndexAny(base, " ("); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BIT", "GEOMETRY":
		return b
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR":
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(string(b), 10, 64); err == nil {
			return n
		}
	case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	}
	return string(b)
}

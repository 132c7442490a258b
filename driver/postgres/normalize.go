package postgres

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/leandroluk/orm/core"
)

// normalizeRows drains rows into plain row mappings and closes them.
func normalizeRows(rows pgx.Rows) ([]core.Row, error) {
	defer rows.Close()

	columnDescriptionList := rows.FieldDescriptions()
	resultList := []core.Row{}

	for rows.Next() {
		valueList, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(core.Row, len(columnDescriptionList))
		for i, col := range columnDescriptionList {
			row[col.Name] = normalizeValue(valueList[i])
		}
		resultList = append(resultList, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return resultList, nil
}

// normalizeValue converts the pgx representations that are not plain Go
// values: uuid columns come back as [16]byte and numeric as pgtype.Numeric.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case [16]byte:
		return uuid.UUID(v).String()
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return value
	}
}

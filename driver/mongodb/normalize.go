package mongodb

import (
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/leandroluk/orm/core"
)

// normalizeDocument converts a decoded document into a row of plain Go
// values: identifiers become hex strings, dates time.Time and embedded
// documents maps.
func normalizeDocument(document primitive.M) core.Row {
	row := make(core.Row, len(document))
	for key, value := range document {
		row[key] = normalizeValue(value)
	}
	return row
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.Timestamp:
		return int64(v.T)
	case primitive.Binary:
		return v.Data
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return v.String()
		}
		return f
	case primitive.Null, primitive.Undefined:
		return nil
	case primitive.M:
		return map[string]any(normalizeDocument(v))
	case primitive.D:
		out := make(map[string]any, len(v))
		for _, e := range v {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return value
	}
}

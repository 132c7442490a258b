package mongodb

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mopt "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leandroluk/orm/core"
)

// IDField is the native identifier field of every document.
const IDField = "_id"

// QueryBuilder translates store-agnostic requests into native filter, sort
// and projection documents. It is stateless.
type QueryBuilder struct{}

var _ core.QueryBuilder = QueryBuilder{}

func (QueryBuilder) Dialect() string { return Protocol }

// Aggregates is empty: aggregation pipelines are not translated.
func (QueryBuilder) Aggregates() []string { return nil }

// Filter builds the filter document of conditions. Keys are emitted in
// lexical order; values of the identifier field are coerced to ObjectID.
func (b QueryBuilder) Filter(conditions core.Conditions) (bson.D, error) {
	filter := bson.D{}
	for _, key := range conditions.Keys() {
		value := conditions[key]
		if key == IDField {
			coerced, err := coerceID(value)
			if err != nil {
				return nil, err
			}
			value = coerced
		}
		element, err := b.element(key, value)
		if err != nil {
			return nil, err
		}
		filter = append(filter, element)
	}
	return filter, nil
}

func (b QueryBuilder) element(key string, value any) (bson.E, error) {
	comparator, ok := value.(core.Comparator)
	if !ok {
		if list, ok := asList(value); ok {
			return bson.E{Key: key, Value: bson.D{{Key: "$in", Value: list}}}, nil
		}
		return bson.E{Key: key, Value: value}, nil
	}

	if comparator.Operator != core.OpEq && comparator.Operator != core.OpNe {
		if isList(comparator.Value) || isList(comparator.To) {
			return bson.E{}, &core.QueryError{Protocol: Protocol, Cause: fmt.Errorf("comparator %s on %s does not accept a list", comparator.Operator, key)}
		}
	}

	var expr any
	switch comparator.Operator {
	case core.OpEq:
		return b.element(key, comparator.Value)
	case core.OpNe:
		if list, ok := asList(comparator.Value); ok {
			expr = bson.D{{Key: "$nin", Value: list}}
			break
		}
		expr = bson.D{{Key: "$ne", Value: comparator.Value}}
	case core.OpGt:
		expr = bson.D{{Key: "$gt", Value: comparator.Value}}
	case core.OpGte:
		expr = bson.D{{Key: "$gte", Value: comparator.Value}}
	case core.OpLt:
		expr = bson.D{{Key: "$lt", Value: comparator.Value}}
	case core.OpLte:
		expr = bson.D{{Key: "$lte", Value: comparator.Value}}
	case core.OpLike:
		expr = likeRegex(comparator.Value)
	case core.OpNotLike:
		expr = bson.D{{Key: "$not", Value: likeRegex(comparator.Value)}}
	case core.OpBetween:
		expr = bson.D{{Key: "$gte", Value: comparator.Value}, {Key: "$lte", Value: comparator.To}}
	case core.OpNotBetween:
		expr = bson.D{{Key: "$not", Value: bson.D{{Key: "$gte", Value: comparator.Value}, {Key: "$lte", Value: comparator.To}}}}
	default:
		return bson.E{}, &core.UnsupportedOperationError{Protocol: Protocol, Operation: "comparator " + string(comparator.Operator)}
	}
	return bson.E{Key: key, Value: expr}, nil
}

// Sort builds the sort document of order. Direction "Z" sorts descending.
func (QueryBuilder) Sort(order []core.Order) bson.D {
	sort := bson.D{}
	for _, item := range order {
		direction := 1
		if item.Descending() {
			direction = -1
		}
		sort = append(sort, bson.E{Key: item.Field, Value: direction})
	}
	return sort
}

// Projection builds the projection of fields. The identifier is hidden
// unless requested. An empty field list projects whole documents.
func (QueryBuilder) Projection(fields []string) bson.D {
	if len(fields) == 0 {
		return nil
	}
	projection := bson.D{}
	withID := false
	for _, field := range fields {
		if field == IDField {
			withID = true
		}
		projection = append(projection, bson.E{Key: field, Value: 1})
	}
	if !withID {
		projection = append(projection, bson.E{Key: IDField, Value: 0})
	}
	return projection
}

// FindOptions builds the native cursor options of a find request. Joins and
// existence subqueries have no native counterpart and are refused.
func (b QueryBuilder) FindOptions(fields []string, options *core.FindOptions) (*mopt.FindOptions, error) {
	if options == nil {
		options = &core.FindOptions{}
	}
	if err := options.Validate(); err != nil {
		return nil, &core.QueryError{Protocol: Protocol, Cause: err}
	}
	if err := checkAssociations(options); err != nil {
		return nil, err
	}

	findOptions := mopt.Find()
	if projection := b.Projection(fields); projection != nil {
		findOptions.SetProjection(projection)
	}
	if len(options.Order) > 0 {
		findOptions.SetSort(b.Sort(options.Order))
	}
	if options.Offset > 0 {
		findOptions.SetSkip(int64(options.Offset))
	}
	if options.Limit != nil {
		findOptions.SetLimit(int64(*options.Limit))
	}
	return findOptions, nil
}

func checkAssociations(options *core.FindOptions) error {
	if !options.HasAssociations() {
		return nil
	}
	if options.Merge != nil {
		return &core.UnsupportedOperationError{Protocol: Protocol, Operation: "merge"}
	}
	if len(options.Exists) > 0 {
		return &core.UnsupportedOperationError{Protocol: Protocol, Operation: "exists"}
	}
	return nil
}

//region Helpers

// coerceID converts identifier strings to ObjectID, element-wise for lists
// and on both bounds of a comparator.
func coerceID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return nil, &core.CoercionError{Field: IDField, Value: v, Cause: err}
		}
		return id, nil
	case core.Comparator:
		from, err := coerceID(v.Value)
		if err != nil {
			return nil, err
		}
		to, err := coerceID(v.To)
		if err != nil {
			return nil, err
		}
		v.Value, v.To = from, to
		return v, nil
	}
	list, ok := asList(value)
	if !ok {
		return value, nil
	}
	coerced := make([]any, len(list))
	for i, item := range list {
		id, err := coerceID(item)
		if err != nil {
			return nil, err
		}
		coerced[i] = id
	}
	return coerced, nil
}

// asList reports whether value is a list of values. Byte slices and
// ObjectIDs are scalars.
func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case nil, []byte, primitive.ObjectID:
		return nil, false
	case []any:
		return v, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func isList(value any) bool {
	_, ok := asList(value)
	return ok
}

// likeRegex converts an SQL LIKE pattern into an anchored regex: % matches
// any run of characters and _ exactly one.
func likeRegex(pattern any) primitive.Regex {
	text, _ := pattern.(string)
	var sb strings.Builder
	sb.WriteByte('^')
	for _, r := range text {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteByte('$')
	return primitive.Regex{Pattern: sb.String(), Options: "s"}
}

//endregion

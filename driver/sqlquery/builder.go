package sqlquery

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/leandroluk/orm/core"
)

const (
	mainAlias   = "t1"
	mergeAlias  = "t2"
	// existsAlias prefixes the aliases of the EXISTS subqueries: e1, e2...
	existsAlias = "e"
)

// Builder is responsible for building the statements of one dialect.
//
// Every value ends up as a bound parameter; identifiers are quoted by the
// dialect. Builder is stateless and safe for concurrent use.
type Builder struct {
	dialect Dialect
}

var _ core.QueryBuilder = (*Builder)(nil)

// New returns a Builder for dialect.
func New(dialect Dialect) *Builder {
	return &Builder{dialect: dialect}
}

// Dialect returns the protocol name of the builder.
func (b *Builder) Dialect() string {
	return b.dialect.Name
}

// Quote quotes an identifier for the builder's dialect.
func (b *Builder) Quote(parts ...string) string {
	return b.dialect.Quote(parts...)
}

// Statements returns a squirrel statement builder configured with the
// dialect's placeholder format, for custom query composition.
func (b *Builder) Statements() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(b.dialect.Placeholder)
}

// Select builds the statement of a find request.
func (b *Builder) Select(fields []string, table string, conditions core.Conditions, options *core.FindOptions) (string, []any, error) {
	if options == nil {
		options = &core.FindOptions{}
	}
	if err := options.Validate(); err != nil {
		return "", nil, err
	}

	query := b.Statements().Select(b.columns(fields, options.Merge)...)
	query, err := b.filter(query, table, conditions, options)
	if err != nil {
		return "", nil, err
	}

	qualifier := ""
	if options.Merge != nil {
		qualifier = mainAlias
	}
	for _, order := range options.Order {
		direction := " ASC"
		if order.Descending() {
			direction = " DESC"
		}
		query = query.OrderBy(b.column(qualifier, order.Field) + direction)
	}
	if options.Limit != nil {
		query = query.Limit(uint64(*options.Limit))
	} else if options.Offset > 0 && b.dialect.MaxLimit > 0 {
		query = query.Limit(b.dialect.MaxLimit)
	}
	if options.Offset > 0 {
		query = query.Offset(uint64(options.Offset))
	}
	return query.ToSql()
}

// Aggregates returns the aggregate functions of the builder's dialect.
func (b *Builder) Aggregates() []string {
	return append([]string(nil), b.dialect.Aggregates...)
}

// Aggregate builds SELECT <function>(<field>) over the rows matching
// conditions, honoring merge and exists. function must be one of Aggregates;
// an empty field aggregates over *.
func (b *Builder) Aggregate(function, field, table string, conditions core.Conditions, options *core.FindOptions) (string, []any, error) {
	if options == nil {
		options = &core.FindOptions{}
	}
	name := strings.ToUpper(function)
	supported := false
	for _, aggregate := range b.dialect.Aggregates {
		if aggregate == name {
			supported = true
			break
		}
	}
	if !supported {
		return "", nil, fmt.Errorf("aggregate function %q is not supported by %s", function, b.dialect.Name)
	}

	argument := "*"
	if field != "" {
		qualifier := ""
		if options.Merge != nil {
			qualifier = mainAlias
		}
		argument = b.column(qualifier, field)
	}
	query := b.Statements().Select(name + "(" + argument + ")")
	query, err := b.filter(query, table, conditions, options)
	if err != nil {
		return "", nil, err
	}
	return query.ToSql()
}

// Count builds the statement of a count request. Pagination and order are
// ignored; merge and exists are honored.
func (b *Builder) Count(table string, conditions core.Conditions, options *core.FindOptions) (string, []any, error) {
	if options == nil {
		options = &core.FindOptions{}
	}
	query := b.Statements().Select("COUNT(*)")
	query, err := b.filter(query, table, conditions, options)
	if err != nil {
		return "", nil, err
	}
	return query.ToSql()
}

// Insert builds the statement persisting data as one row.
func (b *Builder) Insert(table string, data core.Row) (string, []any, error) {
	if len(data) == 0 {
		stmt := "INSERT INTO " + b.Quote(table) + " " + b.dialect.EmptyInsert
		if b.dialect.Returning {
			stmt += " RETURNING *"
		}
		return stmt, nil, nil
	}
	values := make(map[string]any, len(data))
	for column, value := range data {
		values[b.Quote(column)] = value
	}
	query := b.Statements().Insert(b.Quote(table)).SetMap(values)
	if b.dialect.Returning {
		query = query.Suffix("RETURNING *")
	}
	return query.ToSql()
}

// Update builds the statement applying changes to the rows matching
// conditions.
func (b *Builder) Update(table string, changes core.Changes, conditions core.Conditions) (string, []any, error) {
	values := make(map[string]any, len(changes))
	for column, value := range changes {
		values[b.Quote(column)] = value
	}
	query := b.Statements().Update(b.Quote(table)).SetMap(values)
	predicates, err := b.predicates("", conditions)
	if err != nil {
		return "", nil, err
	}
	for _, p := range predicates {
		query = query.Where(p)
	}
	return query.ToSql()
}

// Delete builds the statement removing the rows matching conditions.
func (b *Builder) Delete(table string, conditions core.Conditions) (string, []any, error) {
	query := b.Statements().Delete(b.Quote(table))
	predicates, err := b.predicates("", conditions)
	if err != nil {
		return "", nil, err
	}
	for _, p := range predicates {
		query = query.Where(p)
	}
	return query.ToSql()
}

// Truncate builds the statement removing every row of table.
func (b *Builder) Truncate(table string) string {
	return b.dialect.Truncate + b.Quote(table)
}

// CreateTable builds the DDL creating spec when it does not exist.
func (b *Builder) CreateTable(spec core.TableSpec) (string, error) {
	if len(spec.Properties) == 0 {
		return "", fmt.Errorf("table %s has no properties", spec.Table)
	}
	keys := spec.Keys()
	inlineKey := false

	definitions := make([]string, 0, len(spec.Properties)+1)
	for _, name := range spec.Columns() {
		property := spec.Properties[name]
		definition := b.Quote(name) + " " + b.dialect.ColumnType(property)
		if b.dialect.InlineSerialKey && property.Serial && property.Key && len(keys) == 1 {
			definition += " PRIMARY KEY AUTOINCREMENT"
			inlineKey = true
		} else if property.Required || property.Key {
			definition += " NOT NULL"
		}
		if property.Unique && !property.Key {
			definition += " UNIQUE"
		}
		definitions = append(definitions, definition)
	}
	if len(keys) > 0 && !inlineKey {
		quoted := make([]string, len(keys))
		for i, key := range keys {
			quoted[i] = b.Quote(key)
		}
		definitions = append(definitions, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	return "CREATE TABLE IF NOT EXISTS " + b.Quote(spec.Table) + " (" + strings.Join(definitions, ", ") + ")", nil
}

// DropTable builds the DDL removing table when it exists.
func (b *Builder) DropTable(table string) string {
	return "DROP TABLE IF EXISTS " + b.Quote(table)
}

// Predicate renders one condition entry on an already quoted column
// expression.
func (b *Builder) Predicate(column string, value any) (sq.Sqlizer, error) {
	switch v := value.(type) {
	case core.Comparator:
		if v.Operator != core.OpEq && v.Operator != core.OpNe && (isList(v.Value) || isList(v.To)) {
			return nil, fmt.Errorf("comparator %s on %s does not accept a list", v.Operator, column)
		}
		switch v.Operator {
		case core.OpEq:
			return b.Predicate(column, v.Value)
		case core.OpNe:
			return sq.NotEq{column: v.Value}, nil
		case core.OpGt:
			return sq.Gt{column: v.Value}, nil
		case core.OpGte:
			return sq.GtOrEq{column: v.Value}, nil
		case core.OpLt:
			return sq.Lt{column: v.Value}, nil
		case core.OpLte:
			return sq.LtOrEq{column: v.Value}, nil
		case core.OpLike:
			return sq.Like{column: v.Value}, nil
		case core.OpNotLike:
			return sq.NotLike{column: v.Value}, nil
		case core.OpBetween:
			return sq.Expr(column+" BETWEEN ? AND ?", v.Value, v.To), nil
		case core.OpNotBetween:
			return sq.Expr(column+" NOT BETWEEN ? AND ?", v.Value, v.To), nil
		default:
			return nil, fmt.Errorf("unsupported comparator %q on %s", v.Operator, column)
		}
	default:
		return sq.Eq{column: value}, nil
	}
}

// filter adds FROM, the optional merge join, the WHERE conditions and the
// existence subqueries to query. The main table is aliased whenever a merge
// or a subquery may name the same table.
func (b *Builder) filter(query sq.SelectBuilder, table string, conditions core.Conditions, options *core.FindOptions) (sq.SelectBuilder, error) {
	qualifier := ""
	outer := b.Quote(table)

	if merge := options.Merge; merge != nil {
		qualifier = mainAlias
		outer = b.Quote(mainAlias)
		query = query.From(b.Quote(table) + " AS " + outer).
			Join(fmt.Sprintf("%s AS %s ON %s = %s",
				b.Quote(merge.From.Table), b.Quote(mergeAlias),
				b.column(mergeAlias, merge.From.Field), b.column(mainAlias, merge.To.Field)))

		predicates, err := b.predicates(mergeAlias, merge.Where)
		if err != nil {
			return query, err
		}
		for _, p := range predicates {
			query = query.Where(p)
		}
	} else if len(options.Exists) > 0 {
		outer = b.Quote(mainAlias)
		query = query.From(b.Quote(table) + " AS " + outer)
	} else {
		query = query.From(outer)
	}

	predicates, err := b.predicates(qualifier, conditions)
	if err != nil {
		return query, err
	}
	for _, p := range predicates {
		query = query.Where(p)
	}

	exists := append([]core.ExistsSpec(nil), options.Exists...)
	sort.SliceStable(exists, func(i, j int) bool { return exists[i].Association < exists[j].Association })
	for i, e := range exists {
		p, err := b.exists(outer, existsAlias+strconv.Itoa(i+1), e)
		if err != nil {
			return query, err
		}
		query = query.Where(p)
	}
	return query, nil
}

// exists renders an EXISTS subquery over e.Table aliased as alias and
// correlated with outer. The subquery is built with ? placeholders; the outer
// statement renumbers them.
func (b *Builder) exists(outer, alias string, e core.ExistsSpec) (sq.Sqlizer, error) {
	sub := sq.Select("*").From(b.Quote(e.Table) + " AS " + b.Quote(alias)).
		Where(fmt.Sprintf("%s = %s.%s", b.column(alias, e.Link.Field), outer, b.Quote(e.Link.To)))
	for _, key := range e.Conditions.Keys() {
		p, err := b.Predicate(b.column(alias, key), e.Conditions[key])
		if err != nil {
			return nil, err
		}
		sub = sub.Where(p)
	}
	subSQL, args, err := sub.ToSql()
	if err != nil {
		return nil, err
	}
	return sq.Expr("EXISTS ("+subSQL+")", args...), nil
}

func (b *Builder) predicates(qualifier string, conditions core.Conditions) ([]sq.Sqlizer, error) {
	predicates := make([]sq.Sqlizer, 0, len(conditions))
	for _, key := range conditions.Keys() {
		p, err := b.Predicate(b.column(qualifier, key), conditions[key])
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, p)
	}
	return predicates, nil
}

func (b *Builder) columns(fields []string, merge *core.MergeSpec) []string {
	if merge == nil {
		if len(fields) == 0 {
			return []string{"*"}
		}
		columns := make([]string, len(fields))
		for i, field := range fields {
			columns[i] = b.Quote(field)
		}
		return columns
	}

	var columns []string
	if len(fields) == 0 {
		columns = append(columns, b.Quote(mainAlias)+".*")
	}
	for _, field := range fields {
		columns = append(columns, b.column(mainAlias, field))
	}
	for _, field := range merge.Select {
		columns = append(columns, b.column(mergeAlias, field))
	}
	return columns
}

// isList reports whether value binds as a list. Byte slices are scalars.
func isList(value any) bool {
	if value == nil {
		return false
	}
	if _, ok := value.([]byte); ok {
		return false
	}
	return reflect.TypeOf(value).Kind() == reflect.Slice
}

func (b *Builder) column(qualifier, field string) string {
	if qualifier == "" {
		return b.Quote(field)
	}
	return b.Quote(qualifier, field)
}

package sqlquery

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leandroluk/orm/core"
)

func assertGolden(t *testing.T, name, sql string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(sql))
}

var usersSpec = core.TableSpec{Table: "users", Properties: map[string]core.Property{
	"id":      {Type: core.TypeNumber, Key: true, Serial: true},
	"email":   {Type: core.TypeString, Unique: true, Size: 100},
	"name":    {Type: core.TypeString, Required: true},
	"profile": {Type: core.TypeObject},
}}

func TestSelectPaginatedAndOrdered(t *testing.T) {
	opts := core.NewFindOptions().OrderBy("age", "Z").WithLimit(10).WithOffset(20)
	conditions := core.Conditions{"age": core.Gte(18), "name": core.Like("b%")}

	sql, args, err := New(Postgres).Select([]string{"name", "age"}, "users", conditions, opts)
	require.NoError(t, err)
	assertGolden(t, "postgres_select", sql)
	assert.Equal(t, []any{18, "b%"}, args)
}

func TestSelectMerge(t *testing.T) {
	opts := core.NewFindOptions().WithMerge(core.MergeSpec{
		From:   core.MergeSide{Table: "owners", Field: "id"},
		To:     core.MergeSide{Table: "pets", Field: "owner_id"},
		Select: []string{"name"},
		Where:  core.Conditions{"active": true},
	})

	sql, args, err := New(Postgres).Select(nil, "pets", core.Conditions{"name": "rex"}, opts)
	require.NoError(t, err)
	assertGolden(t, "postgres_select_merge", sql)
	assert.Equal(t, []any{true, "rex"}, args)
}

func TestSelectExists(t *testing.T) {
	opts := core.NewFindOptions().WithExists(core.ExistsSpec{
		Association: "pets",
		Table:       "pets",
		Link:        core.ExistsLink{Field: "owner_id", To: "id"},
		Conditions:  core.Conditions{"species": "cat"},
	})

	sql, args, err := New(Postgres).Select(nil, "users", core.Conditions{"id": []any{1, 2}}, opts)
	require.NoError(t, err)
	assertGolden(t, "postgres_select_exists", sql)
	assert.Equal(t, []any{1, 2, "cat"}, args)
}

func TestSelectOffsetWithoutLimit(t *testing.T) {
	opts := core.NewFindOptions().WithOffset(5)

	sql, _, err := New(MySQL).Select(nil, "users", nil, opts)
	require.NoError(t, err)
	assertGolden(t, "mysql_select_offset", sql)

	sql, _, err = New(Postgres).Select(nil, "users", nil, opts)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" OFFSET 5`, sql)
}

func TestSelectZeroLimit(t *testing.T) {
	sql, _, err := New(SQLite).Select(nil, "users", nil, core.NewFindOptions().WithLimit(0))
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" LIMIT 0`, sql)
}

func TestSelectRejectsNegativePagination(t *testing.T) {
	_, _, err := New(Postgres).Select(nil, "users", nil, core.NewFindOptions().WithLimit(-1))
	assert.Error(t, err)
}

func TestCountIgnoresPagination(t *testing.T) {
	opts := core.NewFindOptions().WithLimit(1).WithOffset(3).OrderBy("id", "A")

	sql, args, err := New(Postgres).Count("users", core.Conditions{"deleted_at": nil}, opts)
	require.NoError(t, err)
	assertGolden(t, "postgres_count", sql)
	assert.Empty(t, args)
}

func TestInsert(t *testing.T) {
	sql, args, err := New(Postgres).Insert("users", core.Row{"name": "bob", "age": 3})
	require.NoError(t, err)
	assertGolden(t, "postgres_insert", sql)
	assert.Equal(t, []any{3, "bob"}, args)

	sql, args, err = New(SQLite).Insert("users", core.Row{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES (?)`, sql)
	assert.Equal(t, []any{"bob"}, args)
}

func TestInsertEmpty(t *testing.T) {
	sql, _, err := New(Postgres).Insert("users", nil)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" DEFAULT VALUES RETURNING *`, sql)

	sql, _, err = New(MySQL).Insert("users", core.Row{})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `users` () VALUES ()", sql)
}

func TestUpdate(t *testing.T) {
	sql, args, err := New(Postgres).Update("users", core.Changes{"name": "bob"}, core.Conditions{"id": 1})
	require.NoError(t, err)
	assertGolden(t, "postgres_update", sql)
	assert.Equal(t, []any{"bob", 1}, args)
}

func TestDelete(t *testing.T) {
	sql, args, err := New(Postgres).Delete("users", core.Conditions{"age": core.Between(1, 5)})
	require.NoError(t, err)
	assertGolden(t, "postgres_delete", sql)
	assert.Equal(t, []any{1, 5}, args)
}

func TestTruncateAndDrop(t *testing.T) {
	assert.Equal(t, `TRUNCATE TABLE "users"`, New(Postgres).Truncate("users"))
	assert.Equal(t, "TRUNCATE TABLE `users`", New(MySQL).Truncate("users"))
	assert.Equal(t, `DELETE FROM "users"`, New(SQLite).Truncate("users"))
	assert.Equal(t, `DROP TABLE IF EXISTS "users"`, New(SQLite).DropTable("users"))
}

func TestCreateTable(t *testing.T) {
	for _, dialect := range []Dialect{Postgres, MySQL, SQLite} {
		t.Run(dialect.Name, func(t *testing.T) {
			sql, err := New(dialect).CreateTable(usersSpec)
			require.NoError(t, err)
			assertGolden(t, dialect.Name+"_create_table", sql)
		})
	}

	_, err := New(Postgres).CreateTable(core.TableSpec{Table: "empty"})
	assert.Error(t, err)
}

func TestPredicate(t *testing.T) {
	b := New(Postgres)
	tests := []struct {
		name  string
		value any
		sql   string
		args  []any
	}{
		{"scalar", 1, `"c" = ?`, []any{1}},
		{"null", nil, `"c" IS NULL`, nil},
		{"list", []int{1, 2}, `"c" IN (?,?)`, []any{1, 2}},
		{"bytes", []byte("ab"), `"c" = ?`, []any{[]byte("ab")}},
		{"eq", core.Eq("x"), `"c" = ?`, []any{"x"}},
		{"ne", core.Ne("x"), `"c" <> ?`, []any{"x"}},
		{"ne list", core.Ne([]any{"a", "b"}), `"c" NOT IN (?,?)`, []any{"a", "b"}},
		{"eq list", core.Eq([]int{1, 2}), `"c" IN (?,?)`, []any{1, 2}},
		{"gt", core.Gt(1), `"c" > ?`, []any{1}},
		{"gte", core.Gte(1), `"c" >= ?`, []any{1}},
		{"lt", core.Lt(1), `"c" < ?`, []any{1}},
		{"lte", core.Lte(1), `"c" <= ?`, []any{1}},
		{"like", core.Like("a%"), `"c" LIKE ?`, []any{"a%"}},
		{"not like", core.NotLike("a%"), `"c" NOT LIKE ?`, []any{"a%"}},
		{"between", core.Between(1, 2), `"c" BETWEEN ? AND ?`, []any{1, 2}},
		{"not between", core.NotBetween(1, 2), `"c" NOT BETWEEN ? AND ?`, []any{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := b.Predicate(b.Quote("c"), tt.value)
			require.NoError(t, err)
			sql, args, err := p.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}

	_, err := b.Predicate(`"c"`, core.Comparator{Operator: "regex", Value: "x"})
	assert.Error(t, err)

	for _, value := range []core.Comparator{
		core.Gt([]int{1, 2}),
		core.Lte([]string{"a"}),
		core.Between([]int{1}, 2),
		core.NotBetween(1, []int{2}),
	} {
		_, err := b.Predicate(`"c"`, value)
		assert.Error(t, err, value.Operator)
	}
}

func TestSelfReferencingExists(t *testing.T) {
	opts := core.NewFindOptions().WithExists(core.ExistsSpec{
		Association: "reports",
		Table:       "people",
		Link:        core.ExistsLink{Field: "boss_id", To: "id"},
		Conditions:  core.Conditions{"name": "ann"},
	})

	sql, args, err := New(SQLite).Select([]string{"name"}, "people", core.Conditions{"name": core.Ne("ann")}, opts)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "name" FROM "people" AS "t1" WHERE "name" <> ? AND `+
		`EXISTS (SELECT * FROM "people" AS "e1" WHERE "e1"."boss_id" = "t1"."id" AND "e1"."name" = ?)`, sql)
	assert.Equal(t, []any{"ann", "ann"}, args)

	sql, _, err = New(Postgres).Count("people", nil, opts.WithExists(core.ExistsSpec{
		Association: "assistants",
		Table:       "people",
		Link:        core.ExistsLink{Field: "assistant_of", To: "id"},
	}))
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "people" AS "t1" WHERE `+
		`EXISTS (SELECT * FROM "people" AS "e1" WHERE "e1"."assistant_of" = "t1"."id") AND `+
		`EXISTS (SELECT * FROM "people" AS "e2" WHERE "e2"."boss_id" = "t1"."id" AND "e2"."name" = $1)`, sql)
}

func TestDollarSkipsQuotedText(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{`a = ? AND b = ?`, `a = $1 AND b = $2`},
		{`"ok?" = ? AND "x""?" = ?`, `"ok?" = $1 AND "x""?" = $2`},
		{`c = '?' AND d = ?`, `c = '?' AND d = $1`},
		{`no placeholders`, `no placeholders`},
	}
	for _, tt := range tests {
		got, err := Dollar.ReplacePlaceholders(tt.sql)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	sql, args, err := New(Postgres).Select([]string{"ok?"}, "users", core.Conditions{"ok?": true, "name": "bob"}, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "ok?" FROM "users" WHERE "name" = $1 AND "ok?" = $2`, sql)
	assert.Equal(t, []any{"bob", true}, args)

	sql, _, err = New(Postgres).Update("users", core.Changes{"why?": 1}, core.Conditions{"id": 2})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "why?" = $1 WHERE "id" = $2`, sql)
}

func TestAggregate(t *testing.T) {
	b := New(Postgres)
	assert.Contains(t, b.Aggregates(), "AVG")
	assert.Contains(t, New(MySQL).Aggregates(), "RAND")
	assert.NotContains(t, New(SQLite).Aggregates(), "CEIL")

	aggregates := b.Aggregates()
	aggregates[0] = "changed"
	assert.Equal(t, "ABS", b.Aggregates()[0])

	sql, args, err := b.Aggregate("avg", "age", "users", core.Conditions{"active": true}, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT AVG("age") FROM "users" WHERE "active" = $1`, sql)
	assert.Equal(t, []any{true}, args)

	sql, _, err = b.Aggregate("COUNT", "", "users", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "users"`, sql)

	merged := core.NewFindOptions().WithMerge(core.MergeSpec{
		From: core.MergeSide{Table: "owners", Field: "id"},
		To:   core.MergeSide{Table: "pets", Field: "owner_id"},
	})
	sql, _, err = New(SQLite).Aggregate("max", "age", "pets", nil, merged)
	require.NoError(t, err)
	assert.Equal(t, `SELECT MAX("t1"."age") FROM "pets" AS "t1" JOIN "owners" AS "t2" ON "t2"."id" = "t1"."owner_id"`, sql)

	_, _, err = New(SQLite).Aggregate("CEIL", "age", "users", nil, nil)
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"t1"."na""me"`, Postgres.Quote("t1", `na"me`))
	assert.Equal(t, "`a``b`", MySQL.Quote("a`b"))
	assert.Equal(t, `"users"`, SQLite.Quote("users"))
	assert.Equal(t, "postgres", New(Postgres).Dialect())
}

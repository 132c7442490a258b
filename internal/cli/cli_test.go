package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leandroluk/orm"
	"github.com/leandroluk/orm/core"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "ormctl", cmd.Use)

	for _, name := range []string{"protocols", "ping", "infer", "find", "count", "clear", "exec"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"config", "connection", "url", "debug"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}

	find, _, err := cmd.Find([]string{"find"})
	require.NoError(t, err)
	for _, flag := range []string{"where", "fields", "order", "limit", "offset"} {
		assert.NotNil(t, find.Flags().Lookup(flag), flag)
	}
	count, _, err := cmd.Find([]string{"count"})
	require.NoError(t, err)
	assert.NotNil(t, count.Flags().Lookup("where"))
	assert.Nil(t, count.Flags().Lookup("limit"))
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"null", nil},
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"1.5", 1.5},
		{"true", true},
		{"false", false},
		{"TRUE", "TRUE"},
		{"1e", "1e"},
		{"bob", "bob"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseValue(tt.raw))
		})
	}
}

func TestParseConditions(t *testing.T) {
	got, err := ParseConditions([]string{
		"name=bob",
		"age>=18",
		"score<=9.5",
		"status!=closed",
		"rank>1",
		"level<3",
		"email~%@x.io",
		"nick!~b_",
		"id=1,2, 3",
		"born=1990..2000",
		"deleted_at=null",
	})
	require.NoError(t, err)
	assert.Equal(t, core.Conditions{
		"name":       "bob",
		"age":        core.Gte(int64(18)),
		"score":      core.Lte(9.5),
		"status":     core.Ne("closed"),
		"rank":       core.Gt(int64(1)),
		"level":      core.Lt(int64(3)),
		"email":      core.Like("%@x.io"),
		"nick":       core.NotLike("b_"),
		"id":         []any{int64(1), int64(2), int64(3)},
		"born":       core.Between(int64(1990), int64(2000)),
		"deleted_at": nil,
	}, got)

	empty, err := ParseConditions(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, expression := range []string{"name", "=bob", ">=1", ""} {
		_, err := ParseConditions([]string{expression})
		assert.Error(t, err, expression)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

// seed creates a sqlite file with a users table and returns its url.
func seed(t *testing.T) string {
	t.Helper()
	url := "sqlite:///" + filepath.Join(t.TempDir(), "app.db")
	ctx := context.Background()
	driver, err := orm.ConnectURL(ctx, url, core.Options{})
	require.NoError(t, err)
	defer driver.Close(ctx)

	require.NoError(t, orm.Sync(ctx, driver, core.TableSpec{Table: "users", Properties: map[string]core.Property{
		"id":   {Type: core.TypeNumber, Key: true, Serial: true},
		"name": {Type: core.TypeString, Required: true},
		"age":  {Type: core.TypeNumber},
	}}))
	for _, row := range []core.Row{{"name": "ana", "age": 30}, {"name": "bob", "age": 17}, {"name": "bea", "age": 45}} {
		_, err := driver.Insert(ctx, "users", row, "id")
		require.NoError(t, err)
	}
	return url
}

func TestProtocolsCommand(t *testing.T) {
	out, err := execute(t, "protocols")
	require.NoError(t, err)

	var protocols []string
	require.NoError(t, yaml.Unmarshal([]byte(out), &protocols))
	assert.Equal(t, orm.Protocols(), protocols)
}

func TestCommandsAgainstSQLite(t *testing.T) {
	url := seed(t)

	out, err := execute(t, "--url", url, "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "ok sqlite ")

	out, err = execute(t, "--url", url, "infer", "users", "absent")
	require.NoError(t, err)
	var tables map[string]map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &tables))
	assert.Equal(t, map[string]map[string]string{
		"users":  {"id": "number", "name": "string", "age": "number"},
		"absent": {},
	}, tables)

	out, err = execute(t, "--url", url, "find", "users", "-w", "name~b%", "-f", "name", "-o", "age:Z")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))
	assert.Equal(t, []map[string]any{{"name": "bea"}, {"name": "bob"}}, rows)

	out, err = execute(t, "--url", url, "find", "users", "-f", "name", "-o", "id", "--limit", "1", "--offset", "1")
	require.NoError(t, err)
	rows = nil
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))
	assert.Equal(t, []map[string]any{{"name": "bob"}}, rows)

	out, err = execute(t, "--url", url, "count", "users", "-w", "age=18..50")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = execute(t, "--url", url, "exec", "SELECT name FROM users WHERE age > ? ORDER BY name", "40")
	require.NoError(t, err)
	rows = nil
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))
	assert.Equal(t, []map[string]any{{"name": "bea"}}, rows)

	_, err = execute(t, "--url", url, "clear", "users")
	require.NoError(t, err)
	out, err = execute(t, "--url", url, "count", "users")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	_, err = execute(t, "--url", url, "clear", "users", "missing")
	var taskErr *core.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "missing", taskErr.Name)
}

func TestCommandErrors(t *testing.T) {
	_, err := execute(t, "--url", "cassandra://localhost", "ping")
	var protocolErr *core.UnknownProtocolError
	assert.ErrorAs(t, err, &protocolErr)

	_, err = execute(t, "--url", "sqlite://", "find", "users", "-w", "broken")
	assert.Error(t, err)

	_, err = execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "ping")
	assert.Error(t, err)

	_, err = execute(t, "infer")
	assert.Error(t, err)
}

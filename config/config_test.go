package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leandroluk/orm/core"
)

const sample = `
default: main
connections:
  main:
    url: postgres://app:secret@db:6432/shop?debug=true
  cache:
    protocol: sqlite
    database: /var/lib/app/cache.db
    pool: true
  broken:
    host: localhost
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Default)
	assert.Equal(t, []string{"broken", "cache", "main"}, cfg.Names())

	main, err := cfg.Connection("")
	require.NoError(t, err)
	assert.Equal(t, core.ConnectionConfig{
		Protocol: "postgres", Host: "db", Port: 6432, Database: "shop",
		User: "app", Password: "secret", Debug: true,
	}, main)

	cache, err := cfg.Connection("cache")
	require.NoError(t, err)
	assert.Equal(t, core.ConnectionConfig{Protocol: "sqlite", Database: "/var/lib/app/cache.db", Pool: true}, cache)
	assert.True(t, cache.Options().Pool)
}

func TestConnectionErrors(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	_, err = cfg.Connection("missing")
	assert.ErrorIs(t, err, ErrNoConnection)

	_, err = cfg.Connection("broken")
	assert.ErrorIs(t, err, core.ErrNoProtocol)

	cfg.Default = ""
	_, err = cfg.Connection("")
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestSingleConnectionIsDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, "connections:\n  only:\n    url: sqlite:data/app.db\n"))
	require.NoError(t, err)

	got, err := cfg.Connection("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", got.Protocol)
	assert.Equal(t, "data/app.db", got.Database)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("ORM_URL", "mongodb://localhost/app")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Default)
	require.Contains(t, cfg.Connections, EnvConnection)

	env, err := cfg.Connection(EnvConnection)
	require.NoError(t, err)
	assert.Equal(t, "mongodb", env.Protocol)
	assert.Equal(t, "app", env.Database)

	t.Setenv("ORM_DEFAULT", "cache")
	cfg, err = Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "cache", cfg.Default)

	t.Setenv("ORM_DEFAULT", "")
	cfg, err = Load(writeConfig(t, "connections: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, EnvConnection, cfg.Default)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "connections: [unbalanced\n"))
	assert.Error(t, err)
}

func TestLoadWithoutDefaultFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Connections)

	_, err = cfg.Connection("")
	assert.ErrorIs(t, err, ErrNoConnection)
}

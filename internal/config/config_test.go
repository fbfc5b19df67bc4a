package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
source:
  url: postgres://src:5432/app
  user: suser
  password: spass
target:
  url: jdbc:postgresql://dst:5432/app
  user: tuser
  password: tpass
migration:
  task_name: task1
  batch_size: 50
  ids_file: /ids.txt
  strategy: simple
log_level: debug
`

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadFromFileWithIDs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg.yaml", []byte(sampleYAML), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ids.txt", []byte("id1\n\n  \nid2\n"), 0o644))

	cfg, err := LoadFS(fs, "/cfg.yaml", newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "postgres://src:5432/app", cfg.Source.URL)
	assert.Equal(t, "tuser", cfg.Target.User)
	assert.Equal(t, 50, cfg.Migration.BatchSize)
	assert.Equal(t, "task1", cfg.Migration.TaskName)
	assert.Equal(t, StrategySimple, cfg.Migration.Strategy)
	assert.Equal(t, []string{"id1", "id2"}, cfg.IDs)
	assert.Equal(t, "debug", cfg.LogLevel)

	// untouched keys keep their defaults
	assert.Equal(t, "person", cfg.Migration.SourceTable)
	assert.Equal(t, []string{"id", "birthday"}, cfg.Migration.Columns)
	assert.Equal(t, BackendTarget, cfg.Checkpoint.Backend)
}

func TestDefaultsWithoutFile(t *testing.T) {
	flags := newFlags(t, "--src-url", "postgres://a/b", "--dst-url", "postgres://c/d")

	cfg, err := LoadFS(afero.NewMemMapFs(), "", flags)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Migration.BatchSize)
	assert.Equal(t, "default", cfg.Migration.TaskName)
	assert.Equal(t, StrategyCopy, cfg.Migration.Strategy)
	assert.Nil(t, cfg.IDs)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestFlagsOverrideFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg.yaml", []byte(sampleYAML), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ids.txt", []byte("a\n"), 0o644))

	flags := newFlags(t,
		"--batch-size", "7",
		"--strategy", "copy",
		"--task", "other",
		"--columns", "id,name",
		"--dst-query-log",
		"--checkpoint-backend", "sqlite",
	)

	cfg, err := LoadFS(fs, "/cfg.yaml", flags)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Migration.BatchSize)
	assert.Equal(t, StrategyCopy, cfg.Migration.Strategy)
	assert.Equal(t, "other", cfg.Migration.TaskName)
	assert.Equal(t, []string{"id", "name"}, cfg.Migration.Columns)
	assert.True(t, cfg.Target.QueryLog)
	assert.False(t, cfg.Source.QueryLog)
	assert.Equal(t, BackendSQLite, cfg.Checkpoint.Backend)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Source.URL = "postgres://a/b"
		cfg.Target.URL = "postgres://c/d"
		return cfg
	}
	require.NoError(t, base().validate())

	cases := map[string]func(*Config){
		"missing source":  func(c *Config) { c.Source.URL = "" },
		"missing target":  func(c *Config) { c.Target.URL = "" },
		"zero batch":      func(c *Config) { c.Migration.BatchSize = 0 },
		"blank task":      func(c *Config) { c.Migration.TaskName = " " },
		"bad strategy":    func(c *Config) { c.Migration.Strategy = "parallel" },
		"id not in cols":  func(c *Config) { c.Migration.Columns = []string{"birthday"} },
		"bad backend":     func(c *Config) { c.Checkpoint.Backend = "redis" },
		"sqlite w/o path": func(c *Config) { c.Checkpoint.Backend = BackendSQLite; c.Checkpoint.Path = "" },
		"missing id col":  func(c *Config) { c.Migration.IDColumn = "" },
		"missing tables":  func(c *Config) { c.Migration.TargetTable = "" },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		assert.Error(t, cfg.validate(), name)
	}
}

func TestMissingIDsFile(t *testing.T) {
	flags := newFlags(t, "--src-url", "postgres://a/b", "--dst-url", "postgres://c/d", "--ids-file", "/nope")

	_, err := LoadFS(afero.NewMemMapFs(), "", flags)
	assert.ErrorContains(t, err, "failed to read ids file")
}

func TestReadIDsKeepsOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ids", []byte("3\r\n1\n\n2"), 0o644))

	ids, err := ReadIDs(fs, "/ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "2"}, ids)
}

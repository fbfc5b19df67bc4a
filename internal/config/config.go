package config

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	StrategyCopy   = "copy"
	StrategySimple = "simple"

	BackendTarget = "target"
	BackendSQLite = "sqlite"
)

// Config represents the application configuration
type Config struct {
	Source      DBConfig         `yaml:"source"`
	Target      DBConfig         `yaml:"target"`
	Migration   Migration        `yaml:"migration"`
	Checkpoint  CheckpointConfig `yaml:"checkpoint"`
	MetricsAddr string           `yaml:"metrics_addr"`
	LogLevel    string           `yaml:"log_level"`

	// IDs holds the contents of Migration.IDsFile, nil when no file is configured
	IDs []string `yaml:"-"`
}

// DBConfig represents a PostgreSQL connection
type DBConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	QueryLog bool   `yaml:"query_log"`
}

// Migration represents migration-specific configuration
type Migration struct {
	TaskName     string   `yaml:"task_name"`
	BatchSize    int      `yaml:"batch_size"`
	IDsFile      string   `yaml:"ids_file"`
	Strategy     string   `yaml:"strategy"`
	SourceTable  string   `yaml:"source_table"`
	TargetTable  string   `yaml:"target_table"`
	IDColumn     string   `yaml:"id_column"`
	Columns      []string `yaml:"columns"`
	Predicate    string   `yaml:"predicate"`
	ShowProgress bool     `yaml:"show_progress"`
}

// CheckpointConfig selects where task progress is persisted
type CheckpointConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		LogLevel:    "info",
		MetricsAddr: ":9090",
		Migration: Migration{
			TaskName:     "default",
			BatchSize:    1000,
			Strategy:     StrategyCopy,
			SourceTable:  "person",
			TargetTable:  "kids",
			IDColumn:     "id",
			Columns:      []string{"id", "birthday"},
			Predicate:    "birthday > current_date - interval '18 years'",
			ShowProgress: true,
		},
		Checkpoint: CheckpointConfig{
			Backend: BackendTarget,
			Path:    "./checkpoint.db",
		},
	}
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadFS(afero.NewOsFs(), configFile, flags)
}

// LoadFS is Load against an explicit filesystem
func LoadFS(fs afero.Fs, configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(fs, cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if flags != nil {
		if err := loadFromFlags(cfg, flags); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Migration.IDsFile != "" {
		ids, err := ReadIDs(fs, cfg.Migration.IDsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ids file: %w", err)
		}
		cfg.IDs = ids
	}

	return cfg, nil
}

func loadFromFile(fs afero.Fs, cfg *Config, filename string) error {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// RegisterFlags declares every flag loadFromFlags understands
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("src-url", "", "Source database URL")
	flags.String("src-user", "", "Source database user")
	flags.String("src-password", "", "Source database password")
	flags.Bool("src-query-log", false, "Log every source SQL statement at debug level")

	flags.String("dst-url", "", "Target database URL")
	flags.String("dst-user", "", "Target database user")
	flags.String("dst-password", "", "Target database password")
	flags.Bool("dst-query-log", false, "Log every target SQL statement at debug level")

	flags.String("task", "default", "Task name used as checkpoint key")
	flags.Int("batch-size", 1000, "Records per batch")
	flags.String("ids-file", "", "Newline-delimited, ordered id list")
	flags.String("strategy", StrategyCopy, "Transfer strategy (copy/simple)")
	flags.String("source-table", "person", "Source table")
	flags.String("target-table", "kids", "Target table")
	flags.String("id-column", "id", "Identifier column")
	flags.StringSlice("columns", []string{"id", "birthday"}, "Columns to transfer")
	flags.String("predicate", "", "SQL predicate selecting source rows")
	flags.Bool("show-progress", true, "Show progress display")

	flags.String("checkpoint-backend", BackendTarget, "Checkpoint backend (target/sqlite)")
	flags.String("checkpoint-path", "./checkpoint.db", "SQLite checkpoint file")

	flags.String("metrics-addr", ":9090", "Metrics listen address, empty disables")
	flags.String("log-level", "info", "Log level (debug/info/warn/error)")
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	strs := map[string]*string{
		"src-url":            &cfg.Source.URL,
		"src-user":           &cfg.Source.User,
		"src-password":       &cfg.Source.Password,
		"dst-url":            &cfg.Target.URL,
		"dst-user":           &cfg.Target.User,
		"dst-password":       &cfg.Target.Password,
		"task":               &cfg.Migration.TaskName,
		"ids-file":           &cfg.Migration.IDsFile,
		"strategy":           &cfg.Migration.Strategy,
		"source-table":       &cfg.Migration.SourceTable,
		"target-table":       &cfg.Migration.TargetTable,
		"id-column":          &cfg.Migration.IDColumn,
		"predicate":          &cfg.Migration.Predicate,
		"checkpoint-backend": &cfg.Checkpoint.Backend,
		"checkpoint-path":    &cfg.Checkpoint.Path,
		"metrics-addr":       &cfg.MetricsAddr,
		"log-level":          &cfg.LogLevel,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	bools := map[string]*bool{
		"src-query-log": &cfg.Source.QueryLog,
		"dst-query-log": &cfg.Target.QueryLog,
		"show-progress": &cfg.Migration.ShowProgress,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flags.Changed("batch-size") {
		v, err := flags.GetInt("batch-size")
		if err != nil {
			return err
		}
		cfg.Migration.BatchSize = v
	}
	if flags.Changed("columns") {
		v, err := flags.GetStringSlice("columns")
		if err != nil {
			return err
		}
		cfg.Migration.Columns = v
	}

	return nil
}

func (c *Config) validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source url is required")
	}
	if c.Target.URL == "" {
		return fmt.Errorf("target url is required")
	}

	m := &c.Migration
	if strings.TrimSpace(m.TaskName) == "" {
		return fmt.Errorf("task name is required")
	}
	if m.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	switch m.Strategy {
	case StrategyCopy, StrategySimple:
	default:
		return fmt.Errorf("unknown strategy %q (want %s or %s)", m.Strategy, StrategyCopy, StrategySimple)
	}
	if m.SourceTable == "" || m.TargetTable == "" {
		return fmt.Errorf("source and target tables are required")
	}
	if m.IDColumn == "" {
		return fmt.Errorf("id column is required")
	}
	if !contains(m.Columns, m.IDColumn) {
		return fmt.Errorf("columns %v must include id column %q", m.Columns, m.IDColumn)
	}

	switch c.Checkpoint.Backend {
	case BackendTarget:
	case BackendSQLite:
		if c.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

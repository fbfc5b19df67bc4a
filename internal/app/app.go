package app

import (
	"context"
	"fmt"
	"time"

	"pgmigrator/internal/checkpoint"
	"pgmigrator/internal/config"
	"pgmigrator/internal/metrics"
	"pgmigrator/internal/migration"
	"pgmigrator/internal/progress"
	"pgmigrator/internal/storage"
	"pgmigrator/internal/transfer"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const closeTimeout = 5 * time.Second

// Migrator represents the main migration application
type Migrator struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New creates a new migrator instance
func New(cfg *config.Config, logger *zap.Logger) (*Migrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Migrator{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}, nil
}

// Metrics returns the collector the run reports to
func (m *Migrator) Metrics() *metrics.Collector {
	return m.metrics
}

// Run executes the migration process. Connections and the checkpoint store
// are held for the whole run and released before Run returns.
func (m *Migrator) Run(ctx context.Context) (result migration.Result, err error) {
	mc := m.cfg.Migration
	m.logger.Info("Starting migration",
		zap.String("task", mc.TaskName),
		zap.String("strategy", mc.Strategy),
		zap.Int("batch_size", mc.BatchSize),
		zap.String("source_table", mc.SourceTable),
		zap.String("target_table", mc.TargetTable),
		zap.String("checkpoint", m.cfg.Checkpoint.Backend),
	)

	if m.cfg.MetricsAddr != "" {
		addr, err := m.metrics.StartServer(m.cfg.MetricsAddr, m.logger)
		if err != nil {
			m.logger.Error("Failed to start metrics server", zap.Error(err))
		} else {
			m.logger.Info("Metrics server listening", zap.String("addr", addr.String()))
		}
	}

	src, dst, err := m.connect(ctx)
	if err != nil {
		return result, &migration.Error{Kind: migration.KindConnection, Task: mc.TaskName, Err: err}
	}
	defer func() {
		if cerr := closeConns(src, dst); cerr != nil {
			m.logger.Warn("Failed to close connections", zap.Error(cerr))
		}
	}()

	store, closeStore, err := m.openCheckpointStore(dst)
	if err != nil {
		return result, &migration.Error{Kind: migration.KindCheckpoint, Task: mc.TaskName, Err: err}
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			m.logger.Warn("Failed to close checkpoint store", zap.Error(cerr))
		}
	}()

	mapping := m.mapping()

	sel, err := newSelector(m.cfg, src, mapping)
	if err != nil {
		return result, &migration.Error{Kind: migration.KindSelection, Task: mc.TaskName, Err: err}
	}

	strategy, err := transfer.New(mc.Strategy, src, dst, mapping)
	if err != nil {
		return result, err
	}

	engine, err := migration.NewEngine(
		migration.Task{Name: mc.TaskName, BatchSize: mc.BatchSize},
		sel, store, strategy, m.metrics, m.logger,
	)
	if err != nil {
		return result, err
	}

	var display *progress.Display
	if mc.ShowProgress && progress.IsTerminalSupported() {
		display = progress.NewDisplay(m.metrics.GetProgressTracker(), 2*time.Second)
		display.Start()
	} else if !mc.ShowProgress {
		m.logger.Info("Progress display disabled (disabled in config)")
	} else {
		m.logger.Info("Progress display disabled (unsupported terminal)")
	}

	result, err = engine.Run(ctx)

	if display != nil {
		display.Stop(err)
	}

	if err != nil {
		m.logger.Error("Migration failed",
			zap.String("task", mc.TaskName),
			zap.Int("processed", result.Processed),
			zap.String("last_id", result.LastID),
			zap.Error(err),
		)
		return result, err
	}

	m.logger.Info("Migration finished",
		zap.String("task", mc.TaskName),
		zap.String("run_id", result.RunID),
		zap.Int("processed", result.Processed),
		zap.Int("batches", result.Batches),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// Close cleans up resources that outlive a run
func (m *Migrator) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := m.metrics.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}

func (m *Migrator) mapping() storage.Mapping {
	mc := m.cfg.Migration
	return storage.Mapping{
		SourceTable: mc.SourceTable,
		TargetTable: mc.TargetTable,
		IDColumn:    mc.IDColumn,
		Columns:     mc.Columns,
	}
}

// connect dials source and target concurrently. If either fails, the other
// connection is closed before returning.
func (m *Migrator) connect(ctx context.Context) (src, dst *pgx.Conn, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		conn, err := storage.Connect(gctx, storageConfig(m.cfg.Source), m.logger.Named("source"))
		if err != nil {
			return fmt.Errorf("source: %w", err)
		}
		src = conn
		return nil
	})
	g.Go(func() error {
		conn, err := storage.Connect(gctx, storageConfig(m.cfg.Target), m.logger.Named("target"))
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		dst = conn
		return nil
	})

	if err := g.Wait(); err != nil {
		if cerr := closeConns(src, dst); cerr != nil {
			m.logger.Warn("Failed to close connections", zap.Error(cerr))
		}
		return nil, nil, err
	}

	return src, dst, nil
}

// openCheckpointStore returns the configured store and its release function
func (m *Migrator) openCheckpointStore(dst *pgx.Conn) (checkpoint.Store, func() error, error) {
	switch m.cfg.Checkpoint.Backend {
	case config.BackendSQLite:
		store, err := checkpoint.NewSQLiteStore(m.cfg.Checkpoint.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		return store, store.Close, nil
	case config.BackendTarget:
		return checkpoint.NewPostgresStore(dst), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", m.cfg.Checkpoint.Backend)
	}
}

func storageConfig(c config.DBConfig) storage.Config {
	return storage.Config{
		URL:      c.URL,
		User:     c.User,
		Password: c.Password,
		QueryLog: c.QueryLog,
	}
}

// closeConns closes every non-nil connection and reports all failures
func closeConns(conns ...*pgx.Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var result *multierror.Error
	for _, conn := range conns {
		if conn == nil {
			continue
		}
		if err := conn.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

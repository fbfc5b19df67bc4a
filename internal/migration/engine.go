package migration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pgmigrator/internal/checkpoint"
	"pgmigrator/internal/selector"
	"pgmigrator/internal/transfer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the engine lifecycle position
type State int

const (
	StateInit State = iota
	StateLoadingProgress
	StateResolvingIDs
	StateTransferring
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateLoadingProgress:
		return "LOADING_PROGRESS"
	case StateResolvingIDs:
		return "RESOLVING_IDS"
	case StateTransferring:
		return "TRANSFERRING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Task identifies one independently checkpointed migration
type Task struct {
	Name      string
	BatchSize int
}

// Result summarizes a run. On failure it covers the batches committed
// and checkpointed before the error.
type Result struct {
	RunID     string
	Selected  int
	Processed int
	Batches   int
	LastID    string
	Elapsed   time.Duration
}

// Engine runs a task batch by batch. Batches are strictly sequential and
// the checkpoint is saved only after the batch commit succeeded.
type Engine struct {
	task     Task
	selector selector.Selector
	store    checkpoint.Store
	strategy transfer.Strategy
	sink     Sink
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.RWMutex
	state State
}

// NewEngine wires the engine collaborators. A nil sink discards metrics.
func NewEngine(task Task, sel selector.Selector, store checkpoint.Store, strategy transfer.Strategy, sink Sink, logger *zap.Logger) (*Engine, error) {
	if task.Name == "" {
		return nil, fmt.Errorf("task name cannot be empty")
	}
	if task.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", task.BatchSize)
	}
	if sel == nil || store == nil || strategy == nil {
		return nil, fmt.Errorf("selector, checkpoint store and strategy are required")
	}
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		task:     task,
		selector: sel,
		store:    store,
		strategy: strategy,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
		state:    StateInit,
	}, nil
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run migrates every selected id after the stored checkpoint
func (e *Engine) Run(ctx context.Context) (Result, error) {
	start := e.now()
	result := Result{RunID: uuid.NewString()}
	logger := e.logger.With(
		zap.String("task", e.task.Name),
		zap.String("run_id", result.RunID),
		zap.String("strategy", e.strategy.Name()),
	)

	finish := func(err error) (Result, error) {
		result.Elapsed = e.now().Sub(start)
		if err != nil {
			e.setState(StateFailed)
			return result, err
		}
		e.setState(StateDone)
		return result, nil
	}

	e.setState(StateLoadingProgress)
	if err := e.store.EnsureSchema(ctx); err != nil {
		return finish(&Error{Kind: KindCheckpoint, Task: e.task.Name, Err: err})
	}
	last, err := e.store.Load(ctx, e.task.Name)
	if err != nil {
		return finish(&Error{Kind: KindCheckpoint, Task: e.task.Name, Err: err})
	}
	if last.Valid {
		logger.Info("Resuming from checkpoint", zap.String("last_id", last.String))
	}

	e.setState(StateResolvingIDs)
	ids, err := e.selector.Select(ctx, last)
	if err != nil {
		return finish(&Error{Kind: KindSelection, Task: e.task.Name, Err: err})
	}
	result.Selected = len(ids)

	if len(ids) == 0 {
		logger.Info("Nothing to migrate")
		return finish(nil)
	}

	batches := Partition(ids, e.task.BatchSize)
	e.sink.SetTotal(len(ids))
	logger.Info("Starting migration",
		zap.Int("ids", len(ids)),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", e.task.BatchSize),
	)

	e.setState(StateTransferring)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return finish(fmt.Errorf("migration interrupted before batch %d: %w", i+1, err))
		}

		batchErr := func(kind Kind, err error) error {
			return &Error{
				Kind:    kind,
				Task:    e.task.Name,
				Batch:   i + 1,
				FirstID: batch[0],
				LastID:  batch[len(batch)-1],
				Err:     err,
			}
		}

		batchStart := e.now()
		rows, err := e.strategy.Transfer(ctx, batch)
		if err != nil {
			e.sink.IncErrors()
			logger.Error("Batch failed", zap.Int("batch", i+1), zap.Error(err))
			return finish(batchErr(KindTransfer, err))
		}
		if rows != int64(len(batch)) {
			logger.Warn("Batch row count differs from id count",
				zap.Int("batch", i+1),
				zap.Int("ids", len(batch)),
				zap.Int64("rows", rows),
			)
		}

		processed := result.Processed + len(batch)
		speed := 0.0
		if elapsed := e.now().Sub(start).Seconds(); elapsed > 0 {
			speed = float64(processed) / elapsed
		}
		e.sink.AddProcessed(len(batch))
		e.sink.SetSpeed(speed)
		e.sink.ObserveBatchDuration(e.now().Sub(batchStart))

		lastID := batch[len(batch)-1]
		if err := e.store.Save(ctx, e.task.Name, lastID); err != nil {
			e.sink.IncErrors()
			logger.Error("Checkpoint save failed after commit",
				zap.Int("batch", i+1),
				zap.String("last_id", lastID),
				zap.Error(err),
			)
			return finish(batchErr(KindCheckpoint, err))
		}

		result.Processed = processed
		result.Batches++
		result.LastID = lastID

		logger.Info(fmt.Sprintf("Processed %d of %d ids (%.0f recs/sec)", processed, len(ids), speed),
			zap.Int("batch", i+1),
			zap.String("last_id", lastID),
		)
	}

	return finish(nil)
}

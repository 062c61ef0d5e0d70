package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexum-io/nexum/cmd/engine/repository"
	"github.com/nexum-io/nexum/common/db"
	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/metrics"
	"github.com/nexum-io/nexum/common/models"
)

// tickBatchSize bounds how many entries one tick processes per category
const tickBatchSize = 100

// Ticker is the engine's only periodic driver: it fires due TIMER entries
// and sweeps expired leases. Deadlines are persisted, so both survive a
// restart.
type Ticker struct {
	db         *db.DB
	executions *repository.ExecutionRepository
	tasks      *repository.TaskRepository
	scheduler  *SchedulerService
	queue      *QueueService
	events     *EventPublisher
	interval   time.Duration
	logger     *logger.Logger
}

// NewTicker creates a new tick loop
func NewTicker(
	database *db.DB,
	executions *repository.ExecutionRepository,
	tasks *repository.TaskRepository,
	scheduler *SchedulerService,
	queue *QueueService,
	events *EventPublisher,
	interval time.Duration,
	log *logger.Logger,
) *Ticker {
	return &Ticker{
		db:         database,
		executions: executions,
		tasks:      tasks,
		scheduler:  scheduler,
		queue:      queue,
		events:     events,
		interval:   interval,
		logger:     log,
	}
}

// Start runs the tick loop until the context is cancelled
func (t *Ticker) Start(ctx context.Context) error {
	t.logger.Info("tick loop starting", "interval", t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tick loop shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := t.fireDueTimers(ctx); err != nil {
				t.logger.Error("failed to fire timers", "error", err)
			}
			if err := t.sweepExpiredLeases(ctx); err != nil {
				t.logger.Error("failed to sweep leases", "error", err)
			}
		}
	}
}

// fireDueTimers commits due TIMER entries as DONE and advances their
// executions. Each entry gets its own transaction and is re-checked under
// the row lock, so concurrent engine instances or overlapping ticks
// cannot double-fire.
func (t *Ticker) fireDueTimers(ctx context.Context) error {
	ids, err := t.tasks.DueTimerIDs(ctx, tickBatchSize)
	if err != nil {
		return err
	}

	for _, taskID := range ids {
		if err := t.fireTimer(ctx, taskID); err != nil {
			t.logger.Error("failed to fire timer", "task_id", taskID, "error", err)
		}
	}

	return nil
}

func (t *Ticker) fireTimer(ctx context.Context, taskID string) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tasks := t.tasks.WithTx(tx)
	executions := t.executions.WithTx(tx)

	task, err := tasks.GetForUpdate(ctx, taskID)
	if err != nil {
		return err
	}

	// Re-check under the lock: another tick may have fired it already
	if task.Status != models.TaskReady || !task.SelfFired {
		return nil
	}
	if task.NotBeforeAt != nil && task.NotBeforeAt.After(time.Now()) {
		return nil
	}

	output, err := json.Marshal(map[string]int64{"fired_at": time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("marshal timer output: %w", err)
	}

	if _, err := executions.GetForUpdate(ctx, task.ExecutionID); err != nil {
		return err
	}

	if err := tasks.MarkDone(ctx, taskID, output); err != nil {
		return err
	}
	if err := executions.MergeCompletedNode(ctx, task.ExecutionID, task.NodeID, output); err != nil {
		return err
	}

	result, err := t.scheduler.Advance(ctx, tx, task.ExecutionID)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	metrics.TimersFired.Inc()
	t.events.NodeCompleted(ctx, task.ExecutionID, task.NodeID)
	if result.Completed {
		metrics.ExecutionsFinished.WithLabelValues(string(models.ExecutionCompleted)).Inc()
		t.events.ExecutionFinished(ctx, task.ExecutionID, models.ExecutionCompleted)
	}

	t.logger.Info("timer fired",
		"task_id", taskID,
		"execution_id", task.ExecutionID,
		"node_id", task.NodeID,
		"scheduled", result.Scheduled)

	return nil
}

// sweepExpiredLeases recovers tasks whose worker crashed: the lapsed
// lease goes through the same retry path as a worker-reported failure,
// bounded by the attempt budget.
func (t *Ticker) sweepExpiredLeases(ctx context.Context) error {
	ids, err := t.tasks.ExpiredLeaseIDs(ctx, tickBatchSize)
	if err != nil {
		return err
	}

	for _, taskID := range ids {
		if err := t.sweepLease(ctx, taskID); err != nil {
			t.logger.Error("failed to sweep lease", "task_id", taskID, "error", err)
		}
	}

	return nil
}

func (t *Ticker) sweepLease(ctx context.Context, taskID string) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := t.tasks.WithTx(tx).GetForUpdate(ctx, taskID)
	if err != nil {
		return err
	}

	// Re-check under the lock: the worker may have completed in between
	if task.Status != models.TaskLeased {
		return nil
	}
	if task.LeaseExpiresAt == nil || task.LeaseExpiresAt.After(time.Now()) {
		return nil
	}

	reason := fmt.Sprintf("lease expired (owner %s)", task.LeaseOwner)
	outcome, err := t.queue.failLocked(ctx, tx, task, reason)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	metrics.LeasesExpired.Inc()
	t.queue.publishFailure(ctx, task, reason, outcome)

	t.logger.Warn("lease expired",
		"task_id", taskID,
		"execution_id", task.ExecutionID,
		"node_id", task.NodeID,
		"lease_owner", task.LeaseOwner,
		"retried", outcome.retried)

	return nil
}

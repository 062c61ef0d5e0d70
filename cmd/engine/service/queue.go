package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nexum-io/nexum/cmd/engine/repository"
	"github.com/nexum-io/nexum/common/blob"
	"github.com/nexum-io/nexum/common/db"
	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/metrics"
	"github.com/nexum-io/nexum/common/models"
)

// QueueService implements the worker-facing claim/complete/fail protocol
type QueueService struct {
	db         *db.DB
	executions *repository.ExecutionRepository
	tasks      *repository.TaskRepository
	registry   *RegistryService
	scheduler  *SchedulerService
	blobs      *blob.Store
	events     *EventPublisher
	policy     RetryPolicy
	leaseTTL   time.Duration
	threshold  int
	logger     *logger.Logger
}

// QueueServiceOpts contains dependencies for a queue service
type QueueServiceOpts struct {
	DB         *db.DB
	Executions *repository.ExecutionRepository
	Tasks      *repository.TaskRepository
	Registry   *RegistryService
	Scheduler  *SchedulerService
	Blobs      *blob.Store
	Events     *EventPublisher
	Policy     RetryPolicy
	LeaseTTL   time.Duration

	// Outputs larger than this many bytes are claim-checked
	InlineThreshold int

	Logger *logger.Logger
}

// NewQueueService creates a new queue service
func NewQueueService(opts QueueServiceOpts) *QueueService {
	return &QueueService{
		db:         opts.DB,
		executions: opts.Executions,
		tasks:      opts.Tasks,
		registry:   opts.Registry,
		scheduler:  opts.Scheduler,
		blobs:      opts.Blobs,
		events:     opts.Events,
		policy:     opts.Policy,
		leaseTTL:   opts.LeaseTTL,
		threshold:  opts.InlineThreshold,
		logger:     opts.Logger,
	}
}

// Poll leases the oldest claimable task for a version hash. Returns
// (nil, nil) when no task is available; workers poll on their own
// interval.
func (s *QueueService) Poll(ctx context.Context, workerID, versionHash string) (*models.Task, error) {
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}

	task, err := s.tasks.Claim(ctx, versionHash, workerID, s.leaseTTL)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.TasksClaimed.Inc()
	s.logger.Debug("task leased",
		"task_id", task.TaskID,
		"execution_id", task.ExecutionID,
		"node_id", task.NodeID,
		"worker_id", workerID,
		"attempt", task.Attempt)

	return task, nil
}

// Complete commits a worker's output: claim-check oversized payloads,
// mark the entry DONE, merge the output into completed_nodes and advance
// the DAG, all in one transaction.
func (s *QueueService) Complete(ctx context.Context, taskID string, output json.RawMessage) error {
	if !json.Valid(output) {
		return fmt.Errorf("output is not valid JSON: %w", models.ErrInvalidArgument)
	}

	final := output
	if len(output) > s.threshold {
		cc, err := s.blobs.Put(output)
		if err != nil {
			return fmt.Errorf("store oversized output: %w", err)
		}
		final, err = json.Marshal(cc)
		if err != nil {
			return fmt.Errorf("marshal claim check: %w", err)
		}
		metrics.ClaimChecksWritten.Inc()
		s.logger.Info("output claim-checked",
			"task_id", taskID,
			"size", cc.Size,
			"sha256", cc.SHA256)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tasks := s.tasks.WithTx(tx)
	executions := s.executions.WithTx(tx)

	task, err := tasks.GetForUpdate(ctx, taskID)
	if err != nil {
		return err
	}

	// A lease that expired was re-queued; another claim may exist.
	// Discarding this completion is safe: COMPUTE re-runs produce
	// identical per-contract output and EFFECT is lease-gated.
	if task.Status != models.TaskLeased {
		return fmt.Errorf("task %s is %s, not LEASED: %w", taskID, task.Status, models.ErrFailedPrecondition)
	}

	// Lock the execution row before touching completed_nodes so
	// concurrent completions serialise (see SchedulerService.Advance).
	if _, err := executions.GetForUpdate(ctx, task.ExecutionID); err != nil {
		return err
	}

	if err := tasks.MarkDone(ctx, taskID, final); err != nil {
		return err
	}
	if err := executions.MergeCompletedNode(ctx, task.ExecutionID, task.NodeID, final); err != nil {
		return err
	}

	result, err := s.scheduler.Advance(ctx, tx, task.ExecutionID)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	metrics.TasksCompleted.Inc()
	s.events.NodeCompleted(ctx, task.ExecutionID, task.NodeID)
	if result.Completed {
		metrics.ExecutionsFinished.WithLabelValues(string(models.ExecutionCompleted)).Inc()
		s.events.ExecutionFinished(ctx, task.ExecutionID, models.ExecutionCompleted)
	}

	s.logger.Info("task completed",
		"task_id", taskID,
		"execution_id", task.ExecutionID,
		"node_id", task.NodeID,
		"scheduled", result.Scheduled,
		"execution_completed", result.Completed)

	return nil
}

// Fail applies the retry policy to a worker-reported failure
func (s *QueueService) Fail(ctx context.Context, taskID, errorMessage string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.tasks.WithTx(tx).GetForUpdate(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Status != models.TaskLeased {
		return fmt.Errorf("task %s is %s, not LEASED: %w", taskID, task.Status, models.ErrFailedPrecondition)
	}

	outcome, err := s.failLocked(ctx, tx, task, errorMessage)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.publishFailure(ctx, task, errorMessage, outcome)
	return nil
}

// failOutcome describes what the retry policy decided
type failOutcome struct {
	retried         bool
	executionFailed bool
}

// failLocked applies the retry policy to a task already locked in tx.
// Also used by the lease sweeper. Either a fresh READY entry with
// attempt+1 and a backoff deadline is inserted, or the attempt budget is
// exhausted and the execution fails.
func (s *QueueService) failLocked(ctx context.Context, tx pgx.Tx, task *models.Task, reason string) (failOutcome, error) {
	tasks := s.tasks.WithTx(tx)
	executions := s.executions.WithTx(tx)

	exec, err := executions.Get(ctx, task.ExecutionID)
	if err != nil {
		return failOutcome{}, err
	}

	nodeType := ""
	if ir, err := s.registry.IR(ctx, exec.WorkflowID, task.VersionHash); err == nil {
		if node, ok := ir.Nodes[task.NodeID]; ok {
			nodeType = node.Type
		}
	}

	if err := tasks.MarkFailed(ctx, task.TaskID); err != nil {
		return failOutcome{}, err
	}

	if task.Attempt < s.policy.MaxAttempts(nodeType) {
		backoff := s.policy.Backoff(task.Attempt)
		notBefore := time.Now().UTC().Add(backoff)

		retry := &models.Task{
			TaskID:      uuid.NewString(),
			ExecutionID: task.ExecutionID,
			NodeID:      task.NodeID,
			VersionHash: task.VersionHash,
			Status:      models.TaskReady,
			Attempt:     task.Attempt + 1,
			NotBeforeAt: &notBefore,
			SelfFired:   task.SelfFired,
			InputJSON:   task.InputJSON,
		}

		if err := tasks.Insert(ctx, retry); err != nil {
			return failOutcome{}, err
		}

		s.logger.Warn("task failed, retrying",
			"task_id", task.TaskID,
			"retry_task_id", retry.TaskID,
			"execution_id", task.ExecutionID,
			"node_id", task.NodeID,
			"attempt", retry.Attempt,
			"backoff", backoff,
			"error", reason)

		return failOutcome{retried: true}, nil
	}

	if _, err := executions.GetForUpdate(ctx, task.ExecutionID); err != nil {
		return failOutcome{}, err
	}

	failed, err := executions.UpdateStatus(ctx, task.ExecutionID, models.ExecutionFailed,
		models.ExecutionPending, models.ExecutionRunning)
	if err != nil {
		return failOutcome{}, err
	}

	s.logger.Error("task failed, attempts exhausted",
		"task_id", task.TaskID,
		"execution_id", task.ExecutionID,
		"node_id", task.NodeID,
		"attempt", task.Attempt,
		"error", reason)

	return failOutcome{executionFailed: failed}, nil
}

// publishFailure emits post-commit metrics and events for a failure
func (s *QueueService) publishFailure(ctx context.Context, task *models.Task, reason string, outcome failOutcome) {
	if outcome.retried {
		metrics.TasksFailed.WithLabelValues("retried").Inc()
	} else {
		metrics.TasksFailed.WithLabelValues("exhausted").Inc()
	}

	s.events.NodeFailed(ctx, task.ExecutionID, task.NodeID, reason, outcome.retried)
	if outcome.executionFailed {
		metrics.ExecutionsFinished.WithLabelValues(string(models.ExecutionFailed)).Inc()
		s.events.ExecutionFinished(ctx, task.ExecutionID, models.ExecutionFailed)
	}
}

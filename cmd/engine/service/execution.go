package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nexum-io/nexum/cmd/engine/repository"
	"github.com/nexum-io/nexum/common/db"
	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/models"
)

// ExecutionService owns the execution lifecycle: creation against a
// pinned workflow version and the status projection for clients.
type ExecutionService struct {
	db         *db.DB
	executions *repository.ExecutionRepository
	registry   *RegistryService
	scheduler  *SchedulerService
	events     *EventPublisher
	logger     *logger.Logger
}

// NewExecutionService creates a new execution service
func NewExecutionService(
	database *db.DB,
	executions *repository.ExecutionRepository,
	registry *RegistryService,
	scheduler *SchedulerService,
	events *EventPublisher,
	log *logger.Logger,
) *ExecutionService {
	return &ExecutionService{
		db:         database,
		executions: executions,
		registry:   registry,
		scheduler:  scheduler,
		events:     events,
		logger:     log,
	}
}

// Start creates an execution pinned to a workflow version and schedules
// its root nodes. The engine never dedupes: every call mints a new
// execution_id; "same intent" mapping is the SDK session file's job.
func (s *ExecutionService) Start(ctx context.Context, workflowID, versionHash string, input json.RawMessage) (string, error) {
	wv, err := s.registry.ResolveVersion(ctx, workflowID, versionHash)
	if err != nil {
		return "", err
	}

	if len(input) == 0 {
		input = json.RawMessage("null")
	}
	if !json.Valid(input) {
		return "", fmt.Errorf("input is not valid JSON: %w", models.ErrInvalidArgument)
	}

	exec := &models.Execution{
		ExecutionID: uuid.NewString(),
		WorkflowID:  wv.WorkflowID,
		VersionHash: wv.VersionHash,
		Status:      models.ExecutionPending,
		InputJSON:   input,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.executions.WithTx(tx).Create(ctx, exec); err != nil {
		return "", err
	}

	// Root tasks and the RUNNING transition land in the same commit as
	// the execution row
	result, err := s.scheduler.Advance(ctx, tx, exec.ExecutionID)
	if err != nil {
		return "", err
	}

	if result.Scheduled > 0 {
		if _, err := s.executions.WithTx(tx).UpdateStatus(ctx, exec.ExecutionID,
			models.ExecutionRunning, models.ExecutionPending); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	started := models.ExecutionPending
	if result.Scheduled > 0 {
		started = models.ExecutionRunning
	}
	s.events.ExecutionStarted(ctx, exec.ExecutionID, wv.WorkflowID, started)
	if result.Completed {
		s.events.ExecutionFinished(ctx, exec.ExecutionID, models.ExecutionCompleted)
	}

	s.logger.Info("execution started",
		"execution_id", exec.ExecutionID,
		"workflow_id", wv.WorkflowID,
		"version_hash", wv.VersionHash,
		"root_tasks", result.Scheduled)

	return exec.ExecutionID, nil
}

// Status returns the execution row for the status projection. Outputs in
// completed_nodes stay as stored: inline values inline, claim-checked
// values as pointer objects, so a status response never carries more than
// the inline threshold per node.
func (s *ExecutionService) Status(ctx context.Context, executionID string) (*models.Execution, error) {
	return s.executions.Get(ctx, executionID)
}

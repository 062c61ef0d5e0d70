package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nexum-io/nexum/common/models"
)

// ExecutionRepository handles database operations for executions
type ExecutionRepository struct {
	db DBTX
}

// NewExecutionRepository creates a new execution repository
func NewExecutionRepository(db DBTX) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// WithTx returns a copy bound to the given transaction
func (r *ExecutionRepository) WithTx(tx pgx.Tx) *ExecutionRepository {
	return &ExecutionRepository{db: tx}
}

const executionColumns = `execution_id, workflow_id, version_hash, status,
	input_json, completed_nodes_json, created_at, updated_at`

// Create inserts a new execution row
func (r *ExecutionRepository) Create(ctx context.Context, exec *models.Execution) error {
	query := `
		INSERT INTO executions (execution_id, workflow_id, version_hash, status, input_json)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		exec.ExecutionID,
		exec.WorkflowID,
		exec.VersionHash,
		string(exec.Status),
		exec.InputJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

// Get retrieves an execution by its ID
func (r *ExecutionRepository) Get(ctx context.Context, executionID string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE execution_id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, executionID), executionID)
}

// GetForUpdate retrieves an execution under a row lock. The scheduler
// serialises per-execution advances on this lock so concurrent
// completions of fan-in dependencies cannot both miss the join node.
func (r *ExecutionRepository) GetForUpdate(ctx context.Context, executionID string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE execution_id = $1 FOR UPDATE`
	return r.scanOne(r.db.QueryRow(ctx, query, executionID), executionID)
}

func (r *ExecutionRepository) scanOne(row pgx.Row, executionID string) (*models.Execution, error) {
	exec := &models.Execution{}
	err := row.Scan(
		&exec.ExecutionID,
		&exec.WorkflowID,
		&exec.VersionHash,
		&exec.Status,
		&exec.InputJSON,
		&exec.CompletedNodes,
		&exec.CreatedAt,
		&exec.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("execution %s: %w", executionID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	return exec, nil
}

// UpdateStatus transitions an execution's status, guarded by the allowed
// source statuses so transitions stay forward-only. Returns true when a
// row was updated.
func (r *ExecutionRepository) UpdateStatus(ctx context.Context, executionID string, to models.ExecutionStatus, from ...models.ExecutionStatus) (bool, error) {
	query := `
		UPDATE executions
		SET status = $2, updated_at = now()
		WHERE execution_id = $1 AND status = ANY($3)
	`

	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	tag, err := r.db.Exec(ctx, query, executionID, string(to), allowed)
	if err != nil {
		return false, fmt.Errorf("failed to update execution status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// MergeCompletedNode appends one node output to completed_nodes_json.
// The map is append-only; an existing key is never rewritten.
func (r *ExecutionRepository) MergeCompletedNode(ctx context.Context, executionID, nodeID string, output json.RawMessage) error {
	query := `
		UPDATE executions
		SET completed_nodes_json = completed_nodes_json || jsonb_build_object($2::text, $3::jsonb),
		    updated_at = now()
		WHERE execution_id = $1
		  AND NOT completed_nodes_json ? $2::text
	`

	tag, err := r.db.Exec(ctx, query, executionID, nodeID, output)
	if err != nil {
		return fmt.Errorf("failed to merge completed node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("node %s already completed for execution %s: %w", nodeID, executionID, models.ErrFailedPrecondition)
	}

	return nil
}

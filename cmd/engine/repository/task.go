package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nexum-io/nexum/common/models"
)

// TaskRepository handles database operations for the task queue
type TaskRepository struct {
	db DBTX
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a copy bound to the given transaction
func (r *TaskRepository) WithTx(tx pgx.Tx) *TaskRepository {
	return &TaskRepository{db: tx}
}

const taskColumns = `task_id, execution_id, node_id, version_hash, status,
	lease_owner, lease_expires_at, not_before_at, attempt, self_fired,
	input_json, output_json, created_at, updated_at`

// Insert materialises a queue entry
func (r *TaskRepository) Insert(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO task_queue (task_id, execution_id, node_id, version_hash,
			status, not_before_at, attempt, self_fired, input_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		task.TaskID,
		task.ExecutionID,
		task.NodeID,
		task.VersionHash,
		string(task.Status),
		task.NotBeforeAt,
		task.Attempt,
		task.SelfFired,
		task.InputJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// Get retrieves a task by its ID
func (r *TaskRepository) Get(ctx context.Context, taskID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM task_queue WHERE task_id = $1`
	return scanTask(r.db.QueryRow(ctx, query, taskID), taskID)
}

// GetForUpdate retrieves a task under a row lock
func (r *TaskRepository) GetForUpdate(ctx context.Context, taskID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM task_queue WHERE task_id = $1 FOR UPDATE`
	return scanTask(r.db.QueryRow(ctx, query, taskID), taskID)
}

// Claim atomically leases the oldest claimable READY entry for a version
// hash. Selection and update are one statement, so no two workers can
// obtain the same task. Self-fired (TIMER) entries are never handed to
// workers. Returns ErrNotFound when nothing is claimable.
func (r *TaskRepository) Claim(ctx context.Context, versionHash, workerID string, leaseTTL time.Duration) (*models.Task, error) {
	query := `
		UPDATE task_queue
		SET status = $1,
		    lease_owner = $2,
		    lease_expires_at = now() + ($3 * interval '1 second'),
		    updated_at = now()
		WHERE task_id = (
			SELECT task_id
			FROM task_queue
			WHERE status = $4
			  AND version_hash = $5
			  AND NOT self_fired
			  AND (not_before_at IS NULL OR not_before_at <= now())
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	row := r.db.QueryRow(ctx, query,
		string(models.TaskLeased),
		workerID,
		leaseTTL.Seconds(),
		string(models.TaskReady),
		versionHash,
	)

	task, err := scanTask(row, "")
	if err != nil {
		return nil, err
	}

	return task, nil
}

// MarkDone commits a leased task with its final output
func (r *TaskRepository) MarkDone(ctx context.Context, taskID string, output json.RawMessage) error {
	query := `
		UPDATE task_queue
		SET status = $2, output_json = $3, updated_at = now()
		WHERE task_id = $1
	`

	_, err := r.db.Exec(ctx, query, taskID, string(models.TaskDone), output)
	if err != nil {
		return fmt.Errorf("failed to mark task done: %w", err)
	}

	return nil
}

// MarkFailed moves a task to terminal FAILED
func (r *TaskRepository) MarkFailed(ctx context.Context, taskID string) error {
	query := `
		UPDATE task_queue
		SET status = $2, updated_at = now()
		WHERE task_id = $1
	`

	_, err := r.db.Exec(ctx, query, taskID, string(models.TaskFailed))
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}

	return nil
}

// ListNodeIDs returns the node ids that already have a queue entry for an
// execution, in any status. The scheduler treats presence as "already
// materialised" regardless of outcome.
func (r *TaskRepository) ListNodeIDs(ctx context.Context, executionID string) (map[string]bool, error) {
	query := `SELECT DISTINCT node_id FROM task_queue WHERE execution_id = $1`

	rows, err := r.db.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task node ids: %w", err)
	}
	defer rows.Close()

	nodeIDs := make(map[string]bool)
	for rows.Next() {
		var nodeID string
		if err := rows.Scan(&nodeID); err != nil {
			return nil, fmt.Errorf("failed to scan node id: %w", err)
		}
		nodeIDs[nodeID] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node ids: %w", err)
	}

	return nodeIDs, nil
}

// DueTimerIDs returns self-fired READY entries whose not_before_at has
// passed. Ids only; the tick loop re-checks each under its own row lock.
func (r *TaskRepository) DueTimerIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT task_id
		FROM task_queue
		WHERE self_fired
		  AND status = $1
		  AND not_before_at <= now()
		ORDER BY not_before_at
		LIMIT $2
	`

	return r.listIDs(ctx, query, models.TaskReady, limit)
}

// ExpiredLeaseIDs returns LEASED entries whose lease has lapsed
func (r *TaskRepository) ExpiredLeaseIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT task_id
		FROM task_queue
		WHERE status = $1
		  AND lease_expires_at < now()
		ORDER BY lease_expires_at
		LIMIT $2
	`

	return r.listIDs(ctx, query, models.TaskLeased, limit)
}

func (r *TaskRepository) listIDs(ctx context.Context, query string, status models.TaskStatus, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list task ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task ids: %w", err)
	}

	return ids, nil
}

func scanTask(row pgx.Row, taskID string) (*models.Task, error) {
	task := &models.Task{}
	err := row.Scan(
		&task.TaskID,
		&task.ExecutionID,
		&task.NodeID,
		&task.VersionHash,
		&task.Status,
		&task.LeaseOwner,
		&task.LeaseExpiresAt,
		&task.NotBeforeAt,
		&task.Attempt,
		&task.SelfFired,
		&task.InputJSON,
		&task.OutputJSON,
		&task.CreatedAt,
		&task.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		if taskID == "" {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	return task, nil
}

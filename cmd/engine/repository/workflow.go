package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nexum-io/nexum/common/models"
)

// WorkflowRepository handles database operations for workflow versions
type WorkflowRepository struct {
	db DBTX
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db DBTX) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// WithTx returns a copy bound to the given transaction
func (r *WorkflowRepository) WithTx(tx pgx.Tx) *WorkflowRepository {
	return &WorkflowRepository{db: tx}
}

// Create inserts a workflow version. Registration is idempotent: an
// existing (workflow_id, version_hash) row is left untouched.
func (r *WorkflowRepository) Create(ctx context.Context, wv *models.WorkflowVersion) error {
	query := `
		INSERT INTO workflow_versions (workflow_id, version_hash, ir_json)
		VALUES ($1, $2, $3)
		ON CONFLICT (workflow_id, version_hash) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query, wv.WorkflowID, wv.VersionHash, wv.IRJSON)
	if err != nil {
		return fmt.Errorf("failed to create workflow version: %w", err)
	}

	return nil
}

// Get retrieves one workflow version
func (r *WorkflowRepository) Get(ctx context.Context, workflowID, versionHash string) (*models.WorkflowVersion, error) {
	query := `
		SELECT workflow_id, version_hash, ir_json, created_at
		FROM workflow_versions
		WHERE workflow_id = $1 AND version_hash = $2
	`

	wv := &models.WorkflowVersion{}
	err := r.db.QueryRow(ctx, query, workflowID, versionHash).Scan(
		&wv.WorkflowID,
		&wv.VersionHash,
		&wv.IRJSON,
		&wv.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workflow version %s@%s: %w", workflowID, versionHash, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow version: %w", err)
	}

	return wv, nil
}

// Latest retrieves the most recently registered version of a workflow
func (r *WorkflowRepository) Latest(ctx context.Context, workflowID string) (*models.WorkflowVersion, error) {
	query := `
		SELECT workflow_id, version_hash, ir_json, created_at
		FROM workflow_versions
		WHERE workflow_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	wv := &models.WorkflowVersion{}
	err := r.db.QueryRow(ctx, query, workflowID).Scan(
		&wv.WorkflowID,
		&wv.VersionHash,
		&wv.IRJSON,
		&wv.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest workflow version: %w", err)
	}

	return wv, nil
}

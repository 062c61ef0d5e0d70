package db

import (
	"context"
	"fmt"
)

// schema holds the engine tables. Statements are idempotent so the hook
// can run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workflow_versions (
		workflow_id  TEXT        NOT NULL,
		version_hash TEXT        NOT NULL,
		ir_json      TEXT        NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (workflow_id, version_hash)
	)`,

	`CREATE TABLE IF NOT EXISTS executions (
		execution_id         TEXT        PRIMARY KEY,
		workflow_id          TEXT        NOT NULL,
		version_hash         TEXT        NOT NULL,
		status               TEXT        NOT NULL,
		input_json           JSONB       NOT NULL DEFAULT 'null',
		completed_nodes_json JSONB       NOT NULL DEFAULT '{}',
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS task_queue (
		task_id          TEXT        PRIMARY KEY,
		execution_id     TEXT        NOT NULL,
		node_id          TEXT        NOT NULL,
		version_hash     TEXT        NOT NULL,
		status           TEXT        NOT NULL,
		lease_owner      TEXT        NOT NULL DEFAULT '',
		lease_expires_at TIMESTAMPTZ,
		not_before_at    TIMESTAMPTZ,
		attempt          INT         NOT NULL DEFAULT 1,
		self_fired       BOOLEAN     NOT NULL DEFAULT FALSE,
		input_json       JSONB       NOT NULL DEFAULT 'null',
		output_json      JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// Claim query: oldest READY entry for a version hash
	`CREATE INDEX IF NOT EXISTS idx_task_queue_ready
		ON task_queue (version_hash, created_at)
		WHERE status = 'READY'`,

	// Lease sweeper
	`CREATE INDEX IF NOT EXISTS idx_task_queue_leased
		ON task_queue (lease_expires_at)
		WHERE status = 'LEASED'`,

	// Timer tick loop
	`CREATE INDEX IF NOT EXISTS idx_task_queue_timers
		ON task_queue (not_before_at)
		WHERE self_fired AND status = 'READY'`,

	`CREATE INDEX IF NOT EXISTS idx_task_queue_execution
		ON task_queue (execution_id)`,

	`CREATE INDEX IF NOT EXISTS idx_executions_workflow
		ON executions (workflow_id, created_at)`,
}

// InitSchema creates the engine tables and indexes if they do not exist.
// Wired as the bootstrap dbInitHook.
func InitSchema(ctx context.Context, database *DB) error {
	for _, stmt := range schema {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	database.log.Info("schema applied", "statements", len(schema))
	return nil
}

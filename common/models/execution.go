package models

import (
	"encoding/json"
	"time"
)

// ExecutionStatus is the lifecycle state of an execution
type ExecutionStatus string

// Execution statuses; transitions are forward-only:
// PENDING -> RUNNING -> {COMPLETED, FAILED, CANCELLED}
const (
	ExecutionPending   ExecutionStatus = "PENDING"
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionCancelled ExecutionStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	}
	return false
}

// Execution represents a single run of a workflow version
// Maps to: executions table
type Execution struct {
	// Engine-assigned opaque id
	ExecutionID string `db:"execution_id" json:"execution_id"`

	WorkflowID string `db:"workflow_id" json:"workflow_id"`

	// Version pinned at start; immutable for this execution
	VersionHash string `db:"version_hash" json:"version_hash"`

	Status ExecutionStatus `db:"status" json:"status"`

	// Client-supplied initial payload
	InputJSON json.RawMessage `db:"input_json" json:"input_json"`

	// node_id -> output JSON value; append-only. Claim-checked outputs
	// hold the pointer object, not the payload.
	CompletedNodes json.RawMessage `db:"completed_nodes_json" json:"completed_nodes_json"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CompletedNodeMap decodes completed_nodes_json into per-node raw values
func (e *Execution) CompletedNodeMap() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	if len(e.CompletedNodes) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(e.CompletedNodes, &out); err != nil {
		return nil, err
	}
	return out, nil
}

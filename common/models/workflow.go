package models

import "time"

// WorkflowVersion represents one immutable registered workflow version
// Maps to: workflow_versions table
type WorkflowVersion struct {
	// Client-chosen workflow identifier, globally unique
	WorkflowID string `db:"workflow_id" json:"workflow_id"`

	// sha256:<hex> of the canonical IR JSON, computed by the SDK. The
	// engine never re-serialises ir_json before hashing; the pair
	// (workflow_id, version_hash) keys the opaque blob.
	VersionHash string `db:"version_hash" json:"version_hash"`

	// Canonical IR text as received from the SDK
	IRJSON string `db:"ir_json" json:"ir_json"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Compatibility values returned by RegisterWorkflow
const (
	CompatibilityIdentical  = "identical"
	CompatibilityCompatible = "compatible"
	CompatibilityBreaking   = "breaking"
)

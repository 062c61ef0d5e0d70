package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nexum-io/nexum/cmd/engine/repository"
	"github.com/nexum-io/nexum/common/blob"
	"github.com/nexum-io/nexum/common/compiler"
	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/metrics"
	"github.com/nexum-io/nexum/common/models"
)

// SchedulerService advances the DAG of an execution: on every
// state-change event it materialises queue entries for nodes whose
// dependencies are all committed, and detects terminal completion.
type SchedulerService struct {
	registry   *RegistryService
	executions *repository.ExecutionRepository
	tasks      *repository.TaskRepository
	blobs      *blob.Store
	logger     *logger.Logger
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(
	registry *RegistryService,
	executions *repository.ExecutionRepository,
	tasks *repository.TaskRepository,
	blobs *blob.Store,
	log *logger.Logger,
) *SchedulerService {
	return &SchedulerService{
		registry:   registry,
		executions: executions,
		tasks:      tasks,
		blobs:      blobs,
		logger:     log,
	}
}

// AdvanceResult summarises one scheduler pass
type AdvanceResult struct {
	// Queue entries inserted by this pass
	Scheduled int

	// True when this pass committed the COMPLETED transition
	Completed bool
}

// Advance runs inside the caller's transaction, after any completed-node
// merge. It re-reads the execution under the row lock the caller already
// holds, so concurrent completions of fan-in dependencies serialise and
// the join node is materialised exactly once.
func (s *SchedulerService) Advance(ctx context.Context, tx pgx.Tx, executionID string) (*AdvanceResult, error) {
	executions := s.executions.WithTx(tx)
	tasks := s.tasks.WithTx(tx)

	exec, err := executions.GetForUpdate(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if exec.Status.IsTerminal() {
		// A late timer fire or sweeper pass can race a terminal
		// transition; there is nothing left to schedule.
		return &AdvanceResult{}, nil
	}

	ir, err := s.registry.IR(ctx, exec.WorkflowID, exec.VersionHash)
	if err != nil {
		return nil, err
	}

	completed, err := exec.CompletedNodeMap()
	if err != nil {
		return nil, fmt.Errorf("decode completed nodes: %w", err)
	}

	queued, err := tasks.ListNodeIDs(ctx, executionID)
	if err != nil {
		return nil, err
	}

	result := &AdvanceResult{}

	// Multi-ready steps insert in IR declaration order
	for _, nodeID := range ir.Order {
		node := ir.Nodes[nodeID]

		if _, done := completed[nodeID]; done {
			continue
		}
		if queued[nodeID] {
			continue
		}
		if !node.Schedulable() {
			continue
		}
		if !depsCompleted(node, completed) {
			continue
		}

		payload, err := BuildTaskPayload(exec.InputJSON, node, completed, s.blobs)
		if err != nil {
			return nil, fmt.Errorf("build payload for node %s: %w", nodeID, err)
		}

		task := &models.Task{
			TaskID:      uuid.NewString(),
			ExecutionID: executionID,
			NodeID:      nodeID,
			VersionHash: exec.VersionHash,
			Status:      models.TaskReady,
			Attempt:     1,
			InputJSON:   payload,
		}

		// TIMER nodes need no worker: the tick loop fires them once
		// the deadline passes
		if node.Type == compiler.NodeTypeTimer {
			notBefore := time.Now().UTC().Add(time.Duration(node.DelaySeconds) * time.Second)
			task.NotBeforeAt = &notBefore
			task.SelfFired = true
		}

		if err := tasks.Insert(ctx, task); err != nil {
			return nil, err
		}

		s.logger.Debug("node scheduled",
			"execution_id", executionID,
			"node_id", nodeID,
			"node_type", node.Type,
			"task_id", task.TaskID)

		result.Scheduled++
	}

	metrics.TasksScheduled.Add(float64(result.Scheduled))

	// Terminal check: every IR node committed
	if len(completed) == len(ir.Nodes) {
		updated, err := executions.UpdateStatus(ctx, executionID, models.ExecutionCompleted,
			models.ExecutionPending, models.ExecutionRunning)
		if err != nil {
			return nil, err
		}
		if updated {
			result.Completed = true
			s.logger.Info("execution completed",
				"execution_id", executionID,
				"nodes", len(ir.Nodes))
		}
	}

	return result, nil
}

// depsCompleted reports whether every dependency has a committed output
func depsCompleted(node *compiler.Node, completed map[string]json.RawMessage) bool {
	for _, dep := range node.Dependencies {
		if _, ok := completed[dep]; !ok {
			return false
		}
	}
	return true
}

// BuildTaskPayload assembles the exact payload delivered to workers:
// {"input": <execution input>, "deps": {<dep>: <dep output>, ...}}.
// Claim-checked dependency outputs are resolved from the sidecar and
// inlined, so workers never see pointer objects.
func BuildTaskPayload(input json.RawMessage, node *compiler.Node, completed map[string]json.RawMessage, blobs *blob.Store) (json.RawMessage, error) {
	if len(input) == 0 {
		input = json.RawMessage("null")
	}

	deps := make(map[string]json.RawMessage, len(node.Dependencies))
	for _, dep := range node.Dependencies {
		value, ok := completed[dep]
		if !ok {
			return nil, fmt.Errorf("dependency %s has no committed output", dep)
		}

		cc, err := models.ParseClaimCheck(value)
		if err != nil {
			return nil, fmt.Errorf("dependency %s: malformed claim check: %w", dep, err)
		}
		if cc != nil {
			resolved, err := blobs.Resolve(cc)
			if err != nil {
				return nil, fmt.Errorf("dependency %s: %w", dep, err)
			}
			value = resolved
		}

		deps[dep] = value
	}

	payload, err := json.Marshal(models.TaskPayload{
		Input: input,
		Deps:  deps,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal task payload: %w", err)
	}

	return payload, nil
}

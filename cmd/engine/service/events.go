package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/models"
	redisWrapper "github.com/nexum-io/nexum/common/redis"
)

// eventChannel carries node and execution lifecycle events for dashboards
// and SDK streaming consumers
const eventChannel = "nexum:events"

// EventPublisher mirrors execution status into Redis (hot path) and
// publishes lifecycle events. Postgres stays the source of truth; every
// operation here is best-effort.
type EventPublisher struct {
	redis  *redisWrapper.Client
	logger *logger.Logger
}

// NewEventPublisher creates a new event publisher. A nil redis client
// yields a publisher that drops everything, for deployments without Redis.
func NewEventPublisher(redis *redisWrapper.Client, log *logger.Logger) *EventPublisher {
	return &EventPublisher{
		redis:  redis,
		logger: log,
	}
}

// publish marshals and publishes one event
func (p *EventPublisher) publish(ctx context.Context, event map[string]interface{}) {
	if p == nil || p.redis == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	if err := p.redis.PublishEvent(ctx, eventChannel, string(payload)); err != nil {
		p.logger.Warn("failed to publish event", "type", event["type"], "error", err)
	}
}

// NodeCompleted announces a committed node output
func (p *EventPublisher) NodeCompleted(ctx context.Context, executionID, nodeID string) {
	p.publish(ctx, map[string]interface{}{
		"type":         "node_completed",
		"execution_id": executionID,
		"node_id":      nodeID,
		"timestamp":    time.Now().Unix(),
	})
}

// NodeFailed announces a failed attempt, worker-reported or from lease
// expiry
func (p *EventPublisher) NodeFailed(ctx context.Context, executionID, nodeID, reason string, retried bool) {
	p.publish(ctx, map[string]interface{}{
		"type":         "node_failed",
		"execution_id": executionID,
		"node_id":      nodeID,
		"error":        reason,
		"retried":      retried,
		"timestamp":    time.Now().Unix(),
	})
}

// ExecutionStarted announces a freshly created execution
func (p *EventPublisher) ExecutionStarted(ctx context.Context, executionID, workflowID string, status models.ExecutionStatus) {
	p.publish(ctx, map[string]interface{}{
		"type":         "execution_started",
		"execution_id": executionID,
		"workflow_id":  workflowID,
		"status":       string(status),
		"timestamp":    time.Now().Unix(),
	})
	p.MirrorStatus(ctx, executionID, status)
}

// ExecutionFinished announces a terminal transition
func (p *EventPublisher) ExecutionFinished(ctx context.Context, executionID string, status models.ExecutionStatus) {
	p.publish(ctx, map[string]interface{}{
		"type":         "execution_finished",
		"execution_id": executionID,
		"status":       string(status),
		"timestamp":    time.Now().Unix(),
	})
	p.MirrorStatus(ctx, executionID, status)
}

// MirrorStatus writes the hot-path status key
func (p *EventPublisher) MirrorStatus(ctx context.Context, executionID string, status models.ExecutionStatus) {
	if p == nil || p.redis == nil {
		return
	}

	key := fmt.Sprintf("nexum:execution:%s:status", executionID)
	if err := p.redis.SetWithExpiry(ctx, key, string(status), 24*time.Hour); err != nil {
		p.logger.Warn("failed to mirror execution status",
			"execution_id", executionID,
			"status", status,
			"error", err)
	}
}

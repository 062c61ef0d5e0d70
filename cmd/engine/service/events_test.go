package service

import (
	"context"
	"testing"

	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/models"
)

// TestEventPublisher_NilRedisIsNoop checks that a deployment without
// Redis never panics on the event paths
func TestEventPublisher_NilRedisIsNoop(t *testing.T) {
	ctx := context.Background()
	publisher := NewEventPublisher(nil, logger.New("error", "text"))

	publisher.NodeCompleted(ctx, "e-1", "a")
	publisher.NodeFailed(ctx, "e-1", "a", "boom", true)
	publisher.ExecutionStarted(ctx, "e-1", "wf", models.ExecutionRunning)
	publisher.ExecutionFinished(ctx, "e-1", models.ExecutionCompleted)
	publisher.MirrorStatus(ctx, "e-1", models.ExecutionRunning)
}

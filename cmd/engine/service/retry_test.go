package service

import (
	"testing"
	"time"

	"github.com/nexum-io/nexum/common/compiler"
	"github.com/stretchr/testify/assert"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttemptsEffect: 3,
		BackoffBase:       1 * time.Second,
		BackoffCap:        30 * time.Second,
	}
}

func TestRetryPolicy_MaxAttempts(t *testing.T) {
	policy := testPolicy()

	assert.Equal(t, 3, policy.MaxAttempts(compiler.NodeTypeEffect))
	assert.Equal(t, 1, policy.MaxAttempts(compiler.NodeTypeCompute))
	assert.Equal(t, 1, policy.MaxAttempts(compiler.NodeTypeTimer))

	// Unknown or unresolvable node types get no retries
	assert.Equal(t, 1, policy.MaxAttempts(""))
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := testPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 1 * time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 8 * time.Second},
		{attempt: 5, want: 16 * time.Second},
		{attempt: 6, want: 30 * time.Second}, // capped
		{attempt: 20, want: 30 * time.Second},
		{attempt: 60, want: 30 * time.Second}, // no overflow at large attempts
		{attempt: 0, want: 1 * time.Second},   // clamped to first attempt
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryPolicy_BackoffGrowsMonotonically(t *testing.T) {
	policy := testPolicy()

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		backoff := policy.Backoff(attempt)
		assert.GreaterOrEqual(t, backoff, prev, "attempt %d", attempt)
		prev = backoff
	}
}

package service

import (
	"time"

	"github.com/nexum-io/nexum/common/compiler"
)

// RetryPolicy decides how node failures are retried. COMPUTE and TIMER
// are treated as deterministic: a failure is final on the first attempt.
// EFFECT is retriable with exponential backoff.
type RetryPolicy struct {
	MaxAttemptsEffect int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
}

// MaxAttempts returns the attempt budget for a node type
func (p RetryPolicy) MaxAttempts(nodeType string) int {
	if nodeType == compiler.NodeTypeEffect {
		return p.MaxAttemptsEffect
	}
	return 1
}

// Backoff returns the delay before the retry following failed attempt n
// (n >= 1): base * 2^(n-1), capped.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := p.BackoffBase
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.BackoffCap {
			return p.BackoffCap
		}
	}

	if backoff > p.BackoffCap {
		return p.BackoffCap
	}
	return backoff
}

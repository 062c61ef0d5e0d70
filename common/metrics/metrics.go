package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters, exposed on the telemetry /metrics endpoint.
var (
	TasksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexum_tasks_scheduled_total",
		Help: "Queue entries materialised by the scheduler",
	})

	TasksClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexum_tasks_claimed_total",
		Help: "Leases handed to workers via PollTask",
	})

	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexum_tasks_completed_total",
		Help: "Tasks committed DONE",
	})

	TasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexum_tasks_failed_total",
		Help: "Task failures, worker-reported or from lease expiry",
	}, []string{"outcome"}) // retried | exhausted

	TimersFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexum_timers_fired_total",
		Help: "TIMER entries fired by the tick loop",
	})

	LeasesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexum_leases_expired_total",
		Help: "Leases reclaimed by the sweeper",
	})

	ExecutionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexum_executions_finished_total",
		Help: "Executions reaching a terminal status",
	}, []string{"status"})

	ClaimChecksWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexum_claim_checks_written_total",
		Help: "Oversized outputs redirected to the blob sidecar",
	})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepsTotal tracks step executions by step name and result
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_steps_total",
			Help: "Total number of workflow step executions",
		},
		[]string{"step", "result"},
	)

	// StepDuration tracks step execution time
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_step_duration_seconds",
			Help:    "Workflow step execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// WorkflowsTotal tracks finished workflows by terminal status
	WorkflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_workflows_total",
			Help: "Total number of workflows reaching a terminal status",
		},
		[]string{"status"},
	)

	// ExternalCallsTotal tracks external calls by service and outcome
	ExternalCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_external_calls_total",
			Help: "Total number of external service calls",
		},
		[]string{"service", "result"},
	)

	// ExternalCallRetries tracks retry sleeps per service
	ExternalCallRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_external_call_retries_total",
			Help: "Total number of external call retries",
		},
		[]string{"service"},
	)

	// ExternalCallLatency tracks external call latency per service
	ExternalCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_external_call_latency_seconds",
			Help:    "External service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// MonitorPolls tracks ticket status polls by outcome
	MonitorPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_monitor_polls_total",
			Help: "Total number of ticket monitoring polls",
		},
		[]string{"outcome"},
	)

	// NotificationsDeduped tracks deliveries skipped by the idempotency guard
	NotificationsDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_notifications_deduped_total",
			Help: "Total number of notifications skipped as already delivered",
		},
	)

	// AuditDropped tracks audit entries dropped because the sink was full
	AuditDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_audit_dropped_total",
			Help: "Total number of audit entries dropped by the sink",
		},
	)

	// RecordsPruned tracks terminal records removed by the retention pruner
	RecordsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_records_pruned_total",
			Help: "Total number of terminal records pruned",
		},
	)
)

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects task-graph-scoped Prometheus series: the Scheduler,
// Runner, Model, and HTTP API concerns this repository actually has.
type Metrics struct {
	// Registry is the Gatherer backing this Metrics instance, for
	// internal/httpapi's /metrics handler to serve via promhttp.
	Registry *prometheus.Registry

	// TasksCreated counts tasks entering the graph.
	TasksCreated prometheus.Counter

	// TasksCompleted counts terminal tasks by outcome (completed|failed|canceled).
	TasksCompleted *prometheus.CounterVec

	// SchedulerQueueDepth tracks the Priority Queue's current length.
	SchedulerQueueDepth prometheus.Gauge

	// SchedulerActiveWorkers tracks concurrently running task goroutines.
	SchedulerActiveWorkers prometheus.Gauge

	// ModelRequestDuration measures Model.Complete call latency in seconds.
	// Labels: provider, model.
	ModelRequestDuration *prometheus.HistogramVec

	// ModelRequestCounter counts Model.Complete calls by provider, model, status.
	ModelRequestCounter *prometheus.CounterVec

	// ModelTokensUsed tracks token consumption by provider, model, and
	// direction (input|output).
	ModelTokensUsed *prometheus.CounterVec

	// ToolExecutionDuration measures Registry.Dispatch latency in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts tool dispatches by tool name and status.
	ToolExecutionCounter *prometheus.CounterVec

	// HTTPRequestDuration measures internal/httpapi request latency.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every series against reg, or a freshly constructed
// *prometheus.Registry when reg is nil. Tests construct their own registry
// so repeated NewMetrics calls within one test binary never collide the way
// they would against a shared global registerer.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		TasksCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskgraph_tasks_created_total",
			Help: "Total number of tasks created in the graph.",
		}),
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskgraph_tasks_completed_total",
			Help: "Total number of tasks reaching a terminal status.",
		}, []string{"status"}),
		SchedulerQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taskgraph_scheduler_queue_depth",
			Help: "Current number of ready tasks waiting for a worker slot.",
		}),
		SchedulerActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taskgraph_scheduler_active_workers",
			Help: "Current number of task goroutines running concurrently.",
		}),
		ModelRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskgraph_model_request_duration_seconds",
			Help:    "Duration of Model.Complete calls in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),
		ModelRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskgraph_model_requests_total",
			Help: "Total number of Model.Complete calls by provider, model, and status.",
		}, []string{"provider", "model", "status"}),
		ModelTokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskgraph_model_tokens_total",
			Help: "Total number of tokens consumed by provider, model, and direction.",
		}, []string{"provider", "model", "direction"}),
		ToolExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskgraph_tool_execution_duration_seconds",
			Help:    "Duration of tool dispatches in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool_name"}),
		ToolExecutionCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskgraph_tool_executions_total",
			Help: "Total number of tool dispatches by tool name and status.",
		}, []string{"tool_name", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskgraph_http_request_duration_seconds",
			Help:    "Duration of internal/httpapi requests in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "path", "status_code"}),
	}
}

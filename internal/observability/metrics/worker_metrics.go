package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	TaskOutcomeCompleted = "completed"
	TaskOutcomeFailed    = "failed"
	TaskOutcomeCancelled = "cancelled"
	TaskOutcomeLost      = "lost_claim"
	TaskOutcomeTimeout   = "timeout"
)

// Config carries the constant labels stamped onto every worker metric.
type Config struct {
	ServiceName string
	Environment string
}

// WorkerMetrics captures task runner health signals.
type WorkerMetrics struct {
	taskRuns      *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	stepDuration  *prometheus.HistogramVec
	adjustments   *prometheus.CounterVec
	claimBatches  prometheus.Counter
	claimedTasks  prometheus.Counter
	runLoopLag    prometheus.Observer
	taskCounts    map[string]prometheus.Counter
	taskObservers map[string]prometheus.Observer
	mu            sync.Mutex
}

var (
	workerMetricsOnce sync.Once
	workerMetrics     *WorkerMetrics
)

// Worker returns the singleton worker metrics registry.
func Worker() *WorkerMetrics {
	return WorkerWithConfig(Config{})
}

// WorkerWithConfig returns the singleton worker metrics registry using config labels.
func WorkerWithConfig(cfg Config) *WorkerMetrics {
	workerMetricsOnce.Do(func() {
		workerMetrics = newWorkerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return workerMetrics
}

// ResetWorkerMetricsForTest resets the worker metrics singleton for tests.
func ResetWorkerMetricsForTest() {
	workerMetricsOnce = sync.Once{}
	workerMetrics = nil
}

func newWorkerMetrics(registerer prometheus.Registerer, cfg Config) *WorkerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "valuemed"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	taskRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "valuemed_worker_task_runs_total",
		Help:        "Calculation task runs by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	taskDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "valuemed_worker_task_duration_seconds",
		Help:        "Calculation task latency end to end.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"outcome"})
	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "valuemed_worker_step_duration_seconds",
		Help:        "Workflow step latency per step name.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	}, []string{"step"})
	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "valuemed_worker_orientation_adjustments_total",
		Help:        "Orientation evaluations by skip or match reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	claimBatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "valuemed_worker_claim_batches_total",
		Help:        "Pending-task claim sweeps.",
		ConstLabels: constLabels,
	})
	claimedTasks := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "valuemed_worker_claimed_tasks_total",
		Help:        "Pending tasks picked up by the claim sweep.",
		ConstLabels: constLabels,
	})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "valuemed_worker_runloop_lag_seconds",
		Help:        "Poll loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		taskRuns,
		taskDuration,
		stepDuration,
		adjustments,
		claimBatches,
		claimedTasks,
		runLoopLag,
	)

	return &WorkerMetrics{
		taskRuns:      taskRuns,
		taskDuration:  taskDuration,
		stepDuration:  stepDuration,
		adjustments:   adjustments,
		claimBatches:  claimBatches,
		claimedTasks:  claimedTasks,
		runLoopLag:    runLoopLag,
		taskCounts:    make(map[string]prometheus.Counter),
		taskObservers: make(map[string]prometheus.Observer),
	}
}

func (m *WorkerMetrics) IncTaskRun(outcome string) {
	if m == nil {
		return
	}
	m.counterFor(outcome).Inc()
}

func (m *WorkerMetrics) ObserveTaskDuration(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.observerFor(outcome).Observe(d.Seconds())
}

func (m *WorkerMetrics) ObserveStepDuration(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (m *WorkerMetrics) IncAdjustment(reason string) {
	if m == nil {
		return
	}
	m.adjustments.WithLabelValues(reason).Inc()
}

func (m *WorkerMetrics) IncClaimBatch(claimed int) {
	if m == nil {
		return
	}
	m.claimBatches.Inc()
	m.claimedTasks.Add(float64(claimed))
}

func (m *WorkerMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m == nil {
		return
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// counterFor memoizes the per-outcome counter so the hot path skips the
// label lookup.
func (m *WorkerMetrics) counterFor(outcome string) prometheus.Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter, ok := m.taskCounts[outcome]
	if !ok {
		counter = m.taskRuns.WithLabelValues(outcome)
		m.taskCounts[outcome] = counter
	}
	return counter
}

func (m *WorkerMetrics) observerFor(outcome string) prometheus.Observer {
	m.mu.Lock()
	defer m.mu.Unlock()
	observer, ok := m.taskObservers[outcome]
	if !ok {
		observer = m.taskDuration.WithLabelValues(outcome)
		m.taskObservers[outcome] = observer
	}
	return observer
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncTaskRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newWorkerMetrics(registry, Config{
		ServiceName: "valuemed",
		Environment: "test",
	})

	metrics.IncTaskRun(TaskOutcomeCompleted)
	metrics.IncTaskRun(TaskOutcomeCompleted)
	metrics.IncTaskRun(TaskOutcomeFailed)

	completed := testutil.ToFloat64(metrics.taskRuns.WithLabelValues(TaskOutcomeCompleted))
	if completed != 2 {
		t.Fatalf("expected 2 completed runs, got %v", completed)
	}
	failed := testutil.ToFloat64(metrics.taskRuns.WithLabelValues(TaskOutcomeFailed))
	if failed != 1 {
		t.Fatalf("expected 1 failed run, got %v", failed)
	}
}

func TestIncClaimBatch(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newWorkerMetrics(registry, Config{})

	metrics.IncClaimBatch(3)
	metrics.IncClaimBatch(0)

	if got := testutil.ToFloat64(metrics.claimBatches); got != 2 {
		t.Fatalf("expected 2 claim batches, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.claimedTasks); got != 3 {
		t.Fatalf("expected 3 claimed tasks, got %v", got)
	}
}

func TestIncAdjustment(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newWorkerMetrics(registry, Config{})

	metrics.IncAdjustment("matched ladder")
	metrics.IncAdjustment("missing benchmark")
	metrics.IncAdjustment("matched ladder")

	if got := testutil.ToFloat64(metrics.adjustments.WithLabelValues("matched ladder")); got != 2 {
		t.Fatalf("expected 2 matched adjustments, got %v", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var metrics *WorkerMetrics
	metrics.IncTaskRun(TaskOutcomeCompleted)
	metrics.ObserveTaskDuration(TaskOutcomeCompleted, time.Second)
	metrics.ObserveStepDuration("load", time.Second)
	metrics.IncAdjustment("matched ladder")
	metrics.IncClaimBatch(1)
	metrics.ObserveRunLoopLag(time.Millisecond)
}

package observability

import (
	"go.uber.org/fx"

	"github.com/careops/valuemed/internal/config"
	"github.com/careops/valuemed/internal/observability/metrics"
)

var Module = fx.Module("observability",
	fx.Invoke(ensureWorkerMetrics),
)

// ensureWorkerMetrics binds the singleton to the configured service labels
// before any worker increments it.
func ensureWorkerMetrics(cfg config.Config) {
	metrics.WorkerWithConfig(metrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})
}

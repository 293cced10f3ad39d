package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	calcdomain "github.com/careops/valuemed/internal/calculation/domain"
	"github.com/careops/valuemed/internal/clock"
	"github.com/careops/valuemed/internal/config"
	obsmetrics "github.com/careops/valuemed/internal/observability/metrics"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config
	Calc   calcdomain.Service
}

// Worker polls for pending calculation tasks and executes them. Multiple
// workers may poll the same database; the claim query skips rows another
// worker holds and the run itself is guarded by the pending-to-running
// transition, so a task never executes twice.
type Worker struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	cfg   config.WorkerConfig
	calc  calcdomain.Service
}

func New(p Params) *Worker {
	cfg := p.Config.Worker
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Minute
	}
	if cfg.ClaimBatch <= 0 {
		cfg.ClaimBatch = 10
	}
	return &Worker{
		db:    p.DB,
		log:   p.Log.Named("worker"),
		clock: p.Clock,
		cfg:   cfg,
		calc:  p.Calc,
	}
}

// RunOnce claims one batch of pending tasks and runs them sequentially.
func (w *Worker) RunOnce(ctx context.Context) error {
	taskIDs, err := w.claimPending(ctx, w.cfg.ClaimBatch)
	if err != nil {
		return err
	}
	obsmetrics.Worker().IncClaimBatch(len(taskIDs))

	var errs error
	for _, taskID := range taskIDs {
		if err := ctx.Err(); err != nil {
			return errors.Join(errs, err)
		}
		errs = errors.Join(errs, w.runTask(ctx, taskID))
	}
	return errs
}

// RunForever polls until the context is cancelled.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	nextRun := w.clock.Now().Add(w.cfg.PollInterval)

	for {
		if lag := time.Since(nextRun); lag > 0 {
			obsmetrics.Worker().ObserveRunLoopLag(lag)
		}
		if err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Warn("worker sweep failed", zap.Error(err))
		}
		nextRun = nextRun.Add(w.cfg.PollInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// claimTimeout bounds the claim transaction so a stalled claim cannot
// hold row locks across a full poll interval.
const claimTimeout = 2 * time.Second

func (w *Worker) claimPending(ctx context.Context, limit int) ([]string, error) {
	claimCtx, cancel := context.WithTimeout(ctx, claimTimeout)
	defer cancel()

	var taskIDs []string
	err := w.db.WithContext(claimCtx).Transaction(func(tx *gorm.DB) error {
		return tx.Raw(
			`SELECT id
			 FROM calculation_tasks
			 WHERE status = ?
			 ORDER BY created_at ASC, id ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT ?`,
			calcdomain.StatusPending,
			limit,
		).Scan(&taskIDs).Error
	})
	if err != nil {
		return nil, err
	}
	return taskIDs, nil
}

// runTask executes one task under a soft timeout. A task that another
// worker already claimed or that was cancelled in the meantime is not an
// error for this sweep.
func (w *Worker) runTask(parent context.Context, taskID string) error {
	ctx, cancel := context.WithTimeout(parent, w.cfg.TaskTimeout)
	defer cancel()

	start := w.clock.Now()
	metrics := obsmetrics.Worker()

	err := w.calc.Run(ctx, taskID)
	elapsed := w.clock.Now().Sub(start)

	switch {
	case err == nil:
		metrics.IncTaskRun(obsmetrics.TaskOutcomeCompleted)
		metrics.ObserveTaskDuration(obsmetrics.TaskOutcomeCompleted, elapsed)
		return nil
	case errors.Is(err, calcdomain.ErrTaskNotPending):
		metrics.IncTaskRun(obsmetrics.TaskOutcomeLost)
		return nil
	case errors.Is(err, calcdomain.ErrTaskCancelled):
		metrics.IncTaskRun(obsmetrics.TaskOutcomeCancelled)
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		metrics.IncTaskRun(obsmetrics.TaskOutcomeTimeout)
		metrics.ObserveTaskDuration(obsmetrics.TaskOutcomeTimeout, elapsed)
		w.log.Warn("task timed out",
			zap.String("task_id", taskID),
			zap.Duration("timeout", w.cfg.TaskTimeout),
		)
		return nil
	default:
		metrics.IncTaskRun(obsmetrics.TaskOutcomeFailed)
		metrics.ObserveTaskDuration(obsmetrics.TaskOutcomeFailed, elapsed)
		w.log.Error("task run failed",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return err
	}
}

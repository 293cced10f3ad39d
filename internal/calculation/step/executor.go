package step

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	calcdomain "github.com/careops/valuemed/internal/calculation/domain"
	"github.com/careops/valuemed/internal/clock"
	deptdomain "github.com/careops/valuemed/internal/department/domain"
	obsmetrics "github.com/careops/valuemed/internal/observability/metrics"
	wfdomain "github.com/careops/valuemed/internal/workflow/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  calcdomain.Repository
}

// Executor runs a task's computation units strictly in step order. Units
// share staging state, so no two units of one task ever run concurrently;
// a unit failure aborts the remainder.
type Executor struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  calcdomain.Repository
}

func NewExecutor(p Params) *Executor {
	return &Executor{
		db:    p.DB,
		log:   p.Log.Named("calculation.step"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Run executes every step for every department. Each step run writes one
// step log row, completed or failed.
func (e *Executor) Run(ctx context.Context, task *calcdomain.CalculationTask, departments []*deptdomain.Department, steps []*wfdomain.CalculationStep) error {
	period, err := calcdomain.ParsePeriod(task.Period)
	if err != nil {
		return err
	}

	ordered := make([]*wfdomain.CalculationStep, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StepOrder < ordered[j].StepOrder
	})

	for _, unit := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runStep(ctx, task, period, unit, departments); err != nil {
			return fmt.Errorf("step %q: %w", unit.Name, err)
		}
	}
	return nil
}

func (e *Executor) runStep(ctx context.Context, task *calcdomain.CalculationTask, period calcdomain.Period, unit *wfdomain.CalculationStep, departments []*deptdomain.Department) error {
	began := e.clock.Now()
	statements := 0

	for _, dept := range departments {
		script := expandContent(unit.Content, task, period, dept)
		for _, stmt := range splitStatements(script) {
			if err := e.db.WithContext(ctx).Exec(stmt).Error; err != nil {
				e.writeLog(ctx, task, unit, calcdomain.StatusFailed, began, statements, err)
				return err
			}
			statements++
		}
	}

	e.writeLog(ctx, task, unit, calcdomain.StatusCompleted, began, statements, nil)
	obsmetrics.Worker().ObserveStepDuration(unit.Name, e.clock.Now().Sub(began))
	e.log.Info("step completed",
		zap.String("task_id", task.ID),
		zap.String("step", unit.Name),
		zap.Int("statements", statements),
	)
	return nil
}

func (e *Executor) writeLog(ctx context.Context, task *calcdomain.CalculationTask, unit *wfdomain.CalculationStep, status string, began time.Time, statements int, execErr error) {
	now := e.clock.Now()
	entry := &calcdomain.CalculationStepLog{
		ID:         e.genID.Generate(),
		TaskID:     task.ID,
		StepID:     unit.ID,
		StepName:   unit.Name,
		StepOrder:  unit.StepOrder,
		Status:     status,
		DurationMs: now.UnixMilli() - began.UnixMilli(),
		ResultData: datatypes.JSONMap{
			"statements": statements,
		},
		CreatedAt: now,
	}
	if execErr != nil {
		entry.ErrorMessage = execErr.Error()
	}
	if err := e.repo.InsertStepLog(ctx, e.db, entry); err != nil {
		e.log.Warn("failed to record step log",
			zap.String("task_id", task.ID),
			zap.String("step", unit.Name),
			zap.Error(err),
		)
	}
}

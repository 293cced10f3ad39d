package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/careops/valuemed/pkg/db/pagination"
)

// Repository is the result repository: task lifecycle rows plus the
// per-task result, summary and step-log sets.
type Repository interface {
	InsertTask(ctx context.Context, db *gorm.DB, task *CalculationTask) error
	FindTask(ctx context.Context, db *gorm.DB, taskID string) (*CalculationTask, error)
	FindTasks(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID, period string, page pagination.Pagination) ([]*CalculationTask, *pagination.PageInfo, error)

	// MarkRunning flips pending to running and reports whether this caller
	// won the transition. At most one execution per task id starts.
	MarkRunning(ctx context.Context, db *gorm.DB, taskID string, now time.Time) (bool, error)
	MarkTerminal(ctx context.Context, db *gorm.DB, taskID, status, errorMessage string, now time.Time) error
	MarkCancelled(ctx context.Context, db *gorm.DB, taskID string, now time.Time) (bool, error)
	UpdateProgress(ctx context.Context, db *gorm.DB, taskID string, progress int, now time.Time) error

	FindLeafResults(ctx context.Context, db *gorm.DB, taskID string, departmentID snowflake.ID) ([]*CalculationResult, error)
	FindResults(ctx context.Context, db *gorm.DB, taskID string, departmentID *snowflake.ID) ([]*CalculationResult, error)
	ReplaceDepartmentResults(ctx context.Context, db *gorm.DB, taskID string, departmentID snowflake.ID, rows []*CalculationResult) error

	UpsertSummary(ctx context.Context, db *gorm.DB, summary *CalculationSummary) error
	FindSummaries(ctx context.Context, db *gorm.DB, taskID string) ([]*CalculationSummary, error)

	InsertStepLog(ctx context.Context, db *gorm.DB, entry *CalculationStepLog) error
	FindStepLogs(ctx context.Context, db *gorm.DB, taskID string) ([]*CalculationStepLog, error)

	// NodePath joins node names root to node for one task+department row set.
	NodePath(ctx context.Context, db *gorm.DB, taskID string, departmentID, nodeID snowflake.ID, separator string) (string, error)

	// CompareByUnit sums the same nodes across two tasks, department values
	// first, then grouped per accounting unit.
	CompareByUnit(ctx context.Context, db *gorm.DB, currentTaskID, previousTaskID string) ([]*UnitComparisonRow, error)
}

// UnitComparisonRow is one (accounting unit, node) pair across two tasks.
type UnitComparisonRow struct {
	AccountingUnitCode string  `json:"accounting_unit_code"`
	AccountingUnitName string  `json:"accounting_unit_name"`
	NodeID             int64   `json:"node_id"`
	NodeName           string  `json:"node_name"`
	NodeType           string  `json:"node_type"`
	CurrentValue       float64 `json:"current_value"`
	PreviousValue      float64 `json:"previous_value"`
}

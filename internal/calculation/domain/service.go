package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/careops/valuemed/pkg/db/pagination"
)

type CreateTaskRequest struct {
	HospitalID    snowflake.ID
	VersionID     snowflake.ID // zero means the hospital's active version
	WorkflowID    *snowflake.ID
	Period        string // YYYY-MM
	DepartmentIDs []snowflake.ID
	BatchID       string
}

// CreateBatchRequest creates one task per comparison period (current,
// prior month, prior year) under a shared batch id.
type CreateBatchRequest struct {
	HospitalID    snowflake.ID
	VersionID     snowflake.ID
	WorkflowID    *snowflake.ID
	Period        string
	DepartmentIDs []snowflake.ID
}

type Service interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*CalculationTask, error)
	CreateBatch(ctx context.Context, req CreateBatchRequest) ([]*CalculationTask, error)
	Cancel(ctx context.Context, hospitalID snowflake.ID, taskID string) error
	Status(ctx context.Context, hospitalID snowflake.ID, taskID string) (*CalculationTask, error)
	List(ctx context.Context, hospitalID snowflake.ID, period string, page pagination.Pagination) ([]*CalculationTask, *pagination.PageInfo, error)
	Run(ctx context.Context, taskID string) error
}

var (
	ErrTaskNotFound    = errors.New("task_not_found")
	ErrInvalidPeriod   = errors.New("invalid_period")
	ErrTaskNotPending  = errors.New("task_not_pending")
	ErrTaskTerminal    = errors.New("task_terminal")
	ErrNoDepartments   = errors.New("no_departments")
	ErrTaskCancelled   = errors.New("task_cancelled")
	ErrStepFailed      = errors.New("step_failed")
	ErrResultsNotFound = errors.New("results_not_found")
)

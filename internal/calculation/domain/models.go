package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// CalculationTask is one execution instance. Its uuid id partitions every
// result and audit row the run produces, so recomputing a period always
// means a fresh task id and old rows stay untouched.
type CalculationTask struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	HospitalID   snowflake.ID  `gorm:"not null;index" json:"hospital_id"`
	VersionID    snowflake.ID  `gorm:"not null" json:"version_id"`
	WorkflowID   *snowflake.ID `json:"workflow_id,omitempty"`
	Period       string        `gorm:"not null;size:7" json:"period"`
	BatchID      *string       `gorm:"size:36;index" json:"batch_id,omitempty"`
	// DepartmentIDs scopes the run; empty means every active department.
	DepartmentIDs datatypes.JSONSlice[int64] `gorm:"type:jsonb" json:"department_ids,omitempty"`
	Status       string        `gorm:"not null;default:pending;index" json:"status"`
	Progress     int           `gorm:"not null;default:0" json:"progress"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// CalculationResult is one row per (task, department, node). Node identity
// is denormalized so reporting can traverse without joining the model tree.
type CalculationResult struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	TaskID       string        `gorm:"not null;size:36;index:idx_results_task_dept" json:"task_id"`
	HospitalID   snowflake.ID  `gorm:"not null" json:"hospital_id"`
	DepartmentID snowflake.ID  `gorm:"not null;index:idx_results_task_dept" json:"department_id"`
	NodeID       snowflake.ID  `gorm:"not null;index" json:"node_id"`
	NodeName     string        `gorm:"not null" json:"node_name"`
	NodeCode     string        `json:"node_code,omitempty"`
	NodeType     string        `gorm:"not null" json:"node_type"`
	ParentID     *snowflake.ID `json:"parent_id,omitempty"`
	Workload     float64       `gorm:"not null;default:0" json:"workload"`
	Weight       float64       `gorm:"not null;default:0" json:"weight"`
	Value        float64       `gorm:"not null;default:0" json:"value"`
	Ratio        float64       `gorm:"not null;default:0" json:"ratio"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// CalculationSummary rolls one (task, department) up into the three staffing
// categories.
type CalculationSummary struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	TaskID         string       `gorm:"not null;size:36;uniqueIndex:idx_summary_task_dept" json:"task_id"`
	DepartmentID   snowflake.ID `gorm:"not null;uniqueIndex:idx_summary_task_dept" json:"department_id"`
	ClinicianValue float64      `gorm:"not null;default:0" json:"clinician_value"`
	ClinicianRatio float64      `gorm:"not null;default:0" json:"clinician_ratio"`
	NursingValue   float64      `gorm:"not null;default:0" json:"nursing_value"`
	NursingRatio   float64      `gorm:"not null;default:0" json:"nursing_ratio"`
	TechnicalValue float64      `gorm:"not null;default:0" json:"technical_value"`
	TechnicalRatio float64      `gorm:"not null;default:0" json:"technical_ratio"`
	TotalValue     float64      `gorm:"not null;default:0" json:"total_value"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// CalculationStepLog records one step execution for a task.
type CalculationStepLog struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	TaskID       string            `gorm:"not null;size:36;index" json:"task_id"`
	StepID       snowflake.ID      `gorm:"not null" json:"step_id"`
	StepName     string            `gorm:"not null" json:"step_name"`
	StepOrder    int               `gorm:"not null;default:0" json:"step_order"`
	Status       string            `gorm:"not null" json:"status"`
	DurationMs   int64             `gorm:"not null;default:0" json:"duration_ms"`
	ResultData   datatypes.JSONMap `gorm:"type:jsonb" json:"result_data,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

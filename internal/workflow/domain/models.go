package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CalculationWorkflow struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	HospitalID  snowflake.ID `gorm:"not null;index" json:"hospital_id"`
	Name        string       `gorm:"not null" json:"name"`
	Description string       `json:"description,omitempty"`
	IsActive    bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// CalculationStep is one opaque computation unit of a workflow. Content is a
// SQL script executed as-is after placeholder substitution; the engine never
// inspects what it computes, only that it writes leaf result rows.
type CalculationStep struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	WorkflowID snowflake.ID `gorm:"not null;index" json:"workflow_id"`
	Name       string       `gorm:"not null" json:"name"`
	StepOrder  int          `gorm:"not null;default:0" json:"step_order"`
	Content    string       `gorm:"not null" json:"content"`
	IsActive   bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

type CreateWorkflowRequest struct {
	HospitalID  snowflake.ID
	Name        string
	Description string
}

type CreateStepRequest struct {
	WorkflowID snowflake.ID
	Name       string
	StepOrder  int
	Content    string
}

type Service interface {
	CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*CalculationWorkflow, error)
	ListWorkflows(ctx context.Context, hospitalID snowflake.ID) ([]*CalculationWorkflow, error)
	GetWorkflow(ctx context.Context, hospitalID, workflowID snowflake.ID) (*CalculationWorkflow, error)
	CreateStep(ctx context.Context, req CreateStepRequest) (*CalculationStep, error)
	ActiveSteps(ctx context.Context, workflowID snowflake.ID) ([]*CalculationStep, error)
}

var (
	ErrWorkflowNotFound = errors.New("workflow_not_found")
	ErrInvalidName      = errors.New("invalid_name")
	ErrEmptyContent     = errors.New("empty_step_content")
)

package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateRuleRequest struct {
	HospitalID  snowflake.ID
	Name        string
	Category    string
	Description string
	Ladders     []LadderRangeRequest
}

type LadderRangeRequest struct {
	LowerLimit          *float64
	UpperLimit          *float64
	AdjustmentIntensity float64
}

type UpsertValueRequest struct {
	HospitalID     snowflake.ID
	RuleID         snowflake.ID
	YearMonth      string
	DepartmentCode string
	ActualValue    float64
	BenchmarkValue *float64
}

// Inputs is the (actual, benchmark) pair the adjustment engine consumes.
type Inputs struct {
	Actual    *float64
	Benchmark *float64
}

type Service interface {
	CreateRule(ctx context.Context, req CreateRuleRequest) (*OrientationRule, error)
	CopyRule(ctx context.Context, hospitalID, ruleID snowflake.ID) (*OrientationRule, error)
	ListRules(ctx context.Context, hospitalID snowflake.ID) ([]*OrientationRule, error)
	GetRule(ctx context.Context, hospitalID, ruleID snowflake.ID) (*OrientationRule, error)
	GetLadder(ctx context.Context, ruleID snowflake.ID) (Ladder, error)
	UpsertValue(ctx context.Context, req UpsertValueRequest) (*OrientationValue, error)
	GetInputs(ctx context.Context, hospitalID, ruleID snowflake.ID, departmentCode, period string) (Inputs, error)
}

var (
	ErrRuleNotFound    = errors.New("orientation_rule_not_found")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidLadder   = errors.New("invalid_ladder")
	ErrInvalidPeriod   = errors.New("invalid_period")
)

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	CategoryBenchmarkLadder = "benchmark_ladder"
	CategoryDirectLadder    = "direct_ladder"
	CategoryOther           = "other"
)

type OrientationRule struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	HospitalID  snowflake.ID `gorm:"not null;index" json:"hospital_id"`
	Name        string       `gorm:"not null" json:"name"`
	Category    string       `gorm:"not null" json:"category"`
	Description string       `json:"description,omitempty"`
	IsActive    bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

type OrientationBenchmark struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	RuleID         snowflake.ID `gorm:"not null;index" json:"rule_id"`
	Name           string       `json:"name,omitempty"`
	BenchmarkValue float64      `gorm:"not null;default:0" json:"benchmark_value"`
	Unit           string       `json:"unit,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// OrientationLadder is one range of a rule's ladder. A nil bound is open:
// nil lower means -inf, nil upper means +inf. A ratio r matches this range
// when lower <= r < upper.
type OrientationLadder struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	RuleID              snowflake.ID `gorm:"not null;index" json:"rule_id"`
	LadderOrder         int          `gorm:"not null;default:0" json:"ladder_order"`
	LowerLimit          *float64     `json:"lower_limit"`
	UpperLimit          *float64     `json:"upper_limit"`
	AdjustmentIntensity float64      `gorm:"not null;default:1" json:"adjustment_intensity"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// OrientationValue carries the externally supplied actual/benchmark figures
// for a rule, department and period.
type OrientationValue struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	HospitalID     snowflake.ID `gorm:"not null;uniqueIndex:idx_orientation_value" json:"hospital_id"`
	RuleID         snowflake.ID `gorm:"not null;uniqueIndex:idx_orientation_value" json:"rule_id"`
	YearMonth      string       `gorm:"not null;uniqueIndex:idx_orientation_value" json:"year_month"`
	DepartmentCode string       `gorm:"not null;uniqueIndex:idx_orientation_value" json:"department_code"`
	ActualValue    float64      `gorm:"not null;default:0" json:"actual_value"`
	BenchmarkValue *float64     `json:"benchmark_value,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// OrientationAdjustmentDetail is the append-only audit row written for every
// (node, rule) evaluation, matched or not.
type OrientationAdjustmentDetail struct {
	ID                  snowflake.ID  `gorm:"primaryKey" json:"id"`
	TaskID              string        `gorm:"not null;index" json:"task_id"`
	DepartmentID        snowflake.ID  `gorm:"not null" json:"department_id"`
	NodeID              snowflake.ID  `gorm:"not null" json:"node_id"`
	RuleID              snowflake.ID  `gorm:"not null" json:"rule_id"`
	ActualValue         *float64      `json:"actual_value,omitempty"`
	BenchmarkValue      *float64      `json:"benchmark_value,omitempty"`
	OrientationRatio    *float64      `json:"orientation_ratio,omitempty"`
	LadderID            *snowflake.ID `json:"ladder_id,omitempty"`
	LowerLimit          *float64      `json:"lower_limit,omitempty"`
	UpperLimit          *float64      `json:"upper_limit,omitempty"`
	AdjustmentIntensity *float64      `json:"adjustment_intensity,omitempty"`
	OriginalWeight      float64       `gorm:"not null;default:0" json:"original_weight"`
	AdjustedWeight      float64       `gorm:"not null;default:0" json:"adjusted_weight"`
	IsAdjusted          bool          `gorm:"not null;default:false" json:"is_adjusted"`
	AdjustmentReason    string        `json:"adjustment_reason,omitempty"`
	CreatedAt           time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

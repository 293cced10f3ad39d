package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	NodeTypeSequence  = "sequence"
	NodeTypeDimension = "dimension"

	CalcTypeStatistical   = "statistical"
	CalcTypeCalculational = "calculational"

	VersionStatusDraft  = "draft"
	VersionStatusActive = "active"
)

type ModelVersion struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	HospitalID  snowflake.ID `gorm:"not null;index" json:"hospital_id"`
	Name        string       `gorm:"not null" json:"name"`
	Status      string       `gorm:"not null;default:draft" json:"status"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// ModelNode is one node of the static configuration tree. Sequences are the
// top-level branches; dimensions hang below them. Weight is meaningful only
// on leaves.
type ModelNode struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	VersionID         snowflake.ID  `gorm:"not null;index" json:"version_id"`
	ParentID          *snowflake.ID `gorm:"index" json:"parent_id,omitempty"`
	Name              string        `gorm:"not null" json:"name"`
	Code              string        `json:"code,omitempty"`
	NodeType          string        `gorm:"not null" json:"node_type"`
	IsLeaf            bool          `gorm:"not null;default:false" json:"is_leaf"`
	CalcType          string        `json:"calc_type,omitempty"`
	Weight            float64       `gorm:"not null;default:0" json:"weight"`
	Unit              string        `json:"unit,omitempty"`
	SortOrder         int           `gorm:"not null;default:0" json:"sort_order"`
	OrientationRuleID *snowflake.ID `json:"orientation_rule_id,omitempty"`
	BusinessGuide     string        `json:"business_guide,omitempty"`
	CreatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

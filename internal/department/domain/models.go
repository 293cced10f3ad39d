package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Hospital struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"not null;uniqueIndex" json:"code"`
	Name      string       `gorm:"not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Department belongs to a hospital. Several departments may share an
// accounting unit, which is the grain reporting aggregates on.
type Department struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	HospitalID         snowflake.ID `gorm:"not null;index" json:"hospital_id"`
	Code               string       `gorm:"not null" json:"code"`
	Name               string       `gorm:"not null" json:"name"`
	HISCode            string       `gorm:"column:his_code" json:"his_code,omitempty"`
	HISName            string       `gorm:"column:his_name" json:"his_name,omitempty"`
	CostCenterCode     string       `json:"cost_center_code,omitempty"`
	CostCenterName     string       `json:"cost_center_name,omitempty"`
	AccountingUnitCode string       `json:"accounting_unit_code,omitempty"`
	AccountingUnitName string       `json:"accounting_unit_name,omitempty"`
	SortOrder          int          `gorm:"not null;default:0" json:"sort_order"`
	IsActive           bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

type Repository interface {
	FindByHospital(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID, activeOnly bool) ([]*Department, error)
	FindByIDs(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID, ids []snowflake.ID) ([]*Department, error)
	FindHospital(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID) (*Hospital, error)
}

type Service interface {
	List(ctx context.Context, hospitalID snowflake.ID) ([]*Department, error)
	Resolve(ctx context.Context, hospitalID snowflake.ID, ids []snowflake.ID) ([]*Department, error)
	AccountingUnits(ctx context.Context, hospitalID snowflake.ID) (map[string][]*Department, error)
}

var (
	ErrHospitalNotFound   = errors.New("hospital_not_found")
	ErrDepartmentNotFound = errors.New("department_not_found")
)

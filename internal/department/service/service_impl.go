package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/department/domain"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("department.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context, hospitalID snowflake.ID) ([]*domain.Department, error) {
	hospital, err := s.repo.FindHospital(ctx, s.db, hospitalID)
	if err != nil {
		return nil, err
	}
	if hospital == nil {
		return nil, domain.ErrHospitalNotFound
	}
	return s.repo.FindByHospital(ctx, s.db, hospitalID, true)
}

// Resolve returns the departments for the given ids, or every active
// department when ids is empty.
func (s *Service) Resolve(ctx context.Context, hospitalID snowflake.ID, ids []snowflake.ID) ([]*domain.Department, error) {
	if len(ids) == 0 {
		return s.List(ctx, hospitalID)
	}
	departments, err := s.repo.FindByIDs(ctx, s.db, hospitalID, ids)
	if err != nil {
		return nil, err
	}
	if len(departments) != len(ids) {
		return nil, domain.ErrDepartmentNotFound
	}
	return departments, nil
}

// AccountingUnits groups active departments by accounting unit code.
// Departments without a unit code group under their own department code.
func (s *Service) AccountingUnits(ctx context.Context, hospitalID snowflake.ID) (map[string][]*domain.Department, error) {
	departments, err := s.List(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]*domain.Department)
	for _, dept := range departments {
		key := dept.AccountingUnitCode
		if key == "" {
			key = dept.Code
		}
		groups[key] = append(groups[key], dept)
	}
	return groups, nil
}

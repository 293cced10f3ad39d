package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/department/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByHospital(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID, activeOnly bool) ([]*domain.Department, error) {
	var departments []*domain.Department
	stmt := db.WithContext(ctx).
		Model(&domain.Department{}).
		Where("hospital_id = ?", hospitalID)
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	err := stmt.Order("sort_order asc, code asc").Find(&departments).Error
	if err != nil {
		return nil, err
	}
	return departments, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID, ids []snowflake.ID) ([]*domain.Department, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var departments []*domain.Department
	err := db.WithContext(ctx).
		Model(&domain.Department{}).
		Where("hospital_id = ? AND id IN ?", hospitalID, ids).
		Order("sort_order asc, code asc").
		Find(&departments).Error
	if err != nil {
		return nil, err
	}
	return departments, nil
}

func (r *repo) FindHospital(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID) (*domain.Hospital, error) {
	var hospital domain.Hospital
	err := db.WithContext(ctx).
		Where("id = ?", hospitalID).
		First(&hospital).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &hospital, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/modeltree/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindNodes(ctx context.Context, db *gorm.DB, versionID snowflake.ID) ([]*domain.ModelNode, error) {
	var nodes []*domain.ModelNode
	err := db.WithContext(ctx).
		Model(&domain.ModelNode{}).
		Where("version_id = ?", versionID).
		Order("sort_order asc, id asc").
		Find(&nodes).Error
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *repo) FindVersion(ctx context.Context, db *gorm.DB, versionID snowflake.ID) (*domain.ModelVersion, error) {
	var version domain.ModelVersion
	err := db.WithContext(ctx).
		Where("id = ?", versionID).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *repo) FindActiveVersion(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID) (*domain.ModelVersion, error) {
	var version domain.ModelVersion
	err := db.WithContext(ctx).
		Where("hospital_id = ? AND status = ?", hospitalID, domain.VersionStatusActive).
		Order("updated_at desc").
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *repo) FindVersions(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID) ([]*domain.ModelVersion, error) {
	var versions []*domain.ModelVersion
	err := db.WithContext(ctx).
		Model(&domain.ModelVersion{}).
		Where("hospital_id = ?", hospitalID).
		Order("created_at desc").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindNodes(ctx context.Context, db *gorm.DB, versionID snowflake.ID) ([]*ModelNode, error)
	FindVersion(ctx context.Context, db *gorm.DB, versionID snowflake.ID) (*ModelVersion, error)
	FindActiveVersion(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID) (*ModelVersion, error)
	FindVersions(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID) ([]*ModelVersion, error)
}

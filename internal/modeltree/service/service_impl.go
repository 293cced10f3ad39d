package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/modeltree/domain"
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
		log:  p.Log.Named("modeltree.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetNodes(ctx context.Context, versionID snowflake.ID) ([]*domain.ModelNode, error) {
	version, err := s.repo.FindVersion(ctx, s.db, versionID)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, domain.ErrVersionNotFound
	}
	return s.repo.FindNodes(ctx, s.db, versionID)
}

func (s *Service) GetTree(ctx context.Context, versionID snowflake.ID) (*domain.Tree, error) {
	nodes, err := s.GetNodes(ctx, versionID)
	if err != nil {
		return nil, err
	}
	tree, err := domain.BuildTree(nodes)
	if err != nil {
		s.log.Warn("malformed model tree",
			zap.Int64("version_id", int64(versionID)),
			zap.Error(err),
		)
		return nil, err
	}
	return tree, nil
}

func (s *Service) ActiveVersion(ctx context.Context, hospitalID snowflake.ID) (*domain.ModelVersion, error) {
	version, err := s.repo.FindActiveVersion(ctx, s.db, hospitalID)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, domain.ErrNoActiveVersion
	}
	return version, nil
}

func (s *Service) GetVersion(ctx context.Context, versionID snowflake.ID) (*domain.ModelVersion, error) {
	version, err := s.repo.FindVersion(ctx, s.db, versionID)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, domain.ErrVersionNotFound
	}
	return version, nil
}

func (s *Service) ListVersions(ctx context.Context, hospitalID snowflake.ID) ([]*domain.ModelVersion, error) {
	return s.repo.FindVersions(ctx, s.db, hospitalID)
}

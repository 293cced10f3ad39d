package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetNodes(ctx context.Context, versionID snowflake.ID) ([]*ModelNode, error)
	GetTree(ctx context.Context, versionID snowflake.ID) (*Tree, error)
	ActiveVersion(ctx context.Context, hospitalID snowflake.ID) (*ModelVersion, error)
	GetVersion(ctx context.Context, versionID snowflake.ID) (*ModelVersion, error)
	ListVersions(ctx context.Context, hospitalID snowflake.ID) ([]*ModelVersion, error)
}

var (
	ErrVersionNotFound = errors.New("model_version_not_found")
	ErrNoActiveVersion = errors.New("no_active_model_version")
	ErrDuplicateNode   = errors.New("duplicate_node")
	ErrDanglingParent  = errors.New("dangling_parent")
	ErrCycle           = errors.New("node_cycle")
	ErrRootNotSequence = errors.New("root_not_sequence")
)

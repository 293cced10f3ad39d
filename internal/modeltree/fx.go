package modeltree

import (
	"go.uber.org/fx"

	"github.com/careops/valuemed/internal/modeltree/repository"
	"github.com/careops/valuemed/internal/modeltree/service"
)

var Module = fx.Module("modeltree.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

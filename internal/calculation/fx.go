package calculation

import (
	"go.uber.org/fx"

	"github.com/careops/valuemed/internal/calculation/repository"
	"github.com/careops/valuemed/internal/calculation/service"
	"github.com/careops/valuemed/internal/calculation/step"
)

var Module = fx.Module("calculation.service",
	fx.Provide(repository.Provide),
	fx.Provide(step.NewExecutor),
	fx.Provide(service.New),
)

package department

import (
	"go.uber.org/fx"

	"github.com/careops/valuemed/internal/department/repository"
	"github.com/careops/valuemed/internal/department/service"
)

var Module = fx.Module("department.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

package workflow

import (
	"go.uber.org/fx"

	"github.com/careops/valuemed/internal/workflow/service"
)

var Module = fx.Module("workflow.service",
	fx.Provide(service.New),
)

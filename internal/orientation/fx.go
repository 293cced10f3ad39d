package orientation

import (
	"go.uber.org/fx"

	"github.com/careops/valuemed/internal/orientation/service"
)

var Module = fx.Module("orientation.service",
	fx.Provide(service.New),
)

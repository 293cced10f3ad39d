package worker

import (
	"context"

	"go.uber.org/fx"

	"github.com/careops/valuemed/internal/config"
)

var Module = fx.Module("worker",
	fx.Provide(New),
	fx.Invoke(Register),
)

func Register(lc fx.Lifecycle, cfg config.Config, w *Worker) {
	if !cfg.Worker.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go w.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}

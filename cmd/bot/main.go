package main

import (
	"context"
	"log"

	"coin_rotator/internal/modules/config"
	"coin_rotator/internal/modules/exchange"
	"coin_rotator/internal/modules/postgres"
	"coin_rotator/internal/modules/telegram"
	"coin_rotator/internal/modules/trader"
	"coin_rotator/pkg/logger"
	"coin_rotator/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName("coin_rotator")
	tracing.SetServiceName("coin_rotator")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		exchange.Module(),
		telegram.Module(),
		trader.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			if cfg.Jaeger.Host == "" {
				return nil
			}
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
}

package exchange

import (
	"context"

	"coin_rotator/internal/exchange"
	"coin_rotator/internal/modules/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			func(cfg *config.Config) *exchange.Client {
				return exchange.NewClient(
					cfg.Binance.APIKey,
					cfg.Binance.APISecret,
					cfg.Binance.TLD,
					cfg.OrderTimeout,
				)
			},
		),
		// Keep the price cache warm for the whole process lifetime.
		fx.Invoke(func(lc fx.Lifecycle, c *exchange.Client, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go c.StreamTickers(ctx)
					return nil
				},
			})
		}),
	)
}

package trader

import (
	"context"

	"coin_rotator/internal/exchange"
	"coin_rotator/internal/modules/config"
	"coin_rotator/internal/notify"
	"coin_rotator/internal/store/pg"
	"coin_rotator/internal/trader"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("trader",
		fx.Provide(
			pg.New, // *pg.Store
			func(s *pg.Store) trader.Store { return s },
			func(c *exchange.Client) trader.Exchange { return c },
			func(cfg *config.Config, ex trader.Exchange, s trader.Store, n notify.Notifier) *trader.Trader {
				return trader.New(cfg, ex, s, n)
			},
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			t *trader.Trader,
			s *pg.Store,
			ctx context.Context,
		) {
			lc.Append(fx.Hook{
				OnStart: func(startCtx context.Context) error {
					if err := s.Migrate(startCtx); err != nil {
						return err
					}
					if err := t.Initialize(startCtx); err != nil {
						return err
					}
					go t.Run(ctx)
					return nil
				},
			})
		}),
	)
}

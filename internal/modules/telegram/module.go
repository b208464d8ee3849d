package telegram

import (
	"coin_rotator/internal/modules/config"
	"coin_rotator/internal/notify"
	"coin_rotator/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token == "" {
					return notify.NewStdout()
				}
				t, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
				if err != nil {
					logger.Error("telegram init failed, falling back to stdout: %v", err)
					return notify.NewStdout()
				}
				return t
			},
		),
	)
}

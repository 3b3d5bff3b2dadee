package telegram

import (
	"context"

	"go.uber.org/fx"

	feedsvc "udf_feed/internal/modules/feed/service"
	"udf_feed/internal/modules/telegram_bot/service"
	"udf_feed/internal/notify"
)

// Module answers bot commands when the notifier is a Telegram bot.
func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			func(df *feedsvc.Datafeed) service.LastBars { return df },
			service.NewCommands,
		),
		fx.Invoke(func(lc fx.Lifecycle, n notify.Notifier, cmds notify.Commands) {
			tg, ok := n.(*notify.Telegram)
			if !ok {
				return
			}
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go tg.Listen(ctx, cmds)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					tg.Stop()
					return nil
				},
			})
		}),
	)
}

package bootstrap

import (
	"context"

	"go.uber.org/fx"

	bootstrap "udf_feed/internal/modules/bootstrap/service"
	feed "udf_feed/internal/modules/feed/service"
	health "udf_feed/internal/modules/health/service"
	"udf_feed/pkg/logger"
)

// Module warms up and subscribes the configured watchlist once the app has
// started, then marks the process ready.
func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			bootstrap.NewWatchlist,
			func(df *feed.Datafeed) bootstrap.Feed { return df },
			bootstrap.NewWarmuper,
		),
		fx.Invoke(func(lc fx.Lifecycle, wl *bootstrap.Watchlist, wu *bootstrap.Warmuper, state *health.State) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						items := wl.Items()
						if err := wu.Warmup(ctx, items); err != nil {
							logger.Error("[BOOT] warmup error: %v", err)
						} else {
							logger.Info("[BOOT] warmup done: %d series", len(items))
						}
						state.SetReady(true)
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}

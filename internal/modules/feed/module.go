package feed

import (
	"context"

	"udf_feed/internal/modules/feed/service"
	udf "udf_feed/internal/modules/udf_client/service"

	"go.uber.org/fx"
)

// Module wires the datafeed on top of the UDF client. A service.PollObserver
// must be provided by the application.
func Module() fx.Option {
	return fx.Module("feed",
		fx.Provide(
			func(c *udf.Client) service.Transport { return c },
			service.NewDatafeed,
		),
		fx.Invoke(func(lc fx.Lifecycle, df *service.Datafeed) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					df.Close()
					return nil
				},
			})
		}),
	)
}

package main

import (
	"go.uber.org/fx"

	"udf_feed/internal/modules/bootstrap"
	"udf_feed/internal/modules/bridge"
	bridgesvc "udf_feed/internal/modules/bridge/service"
	"udf_feed/internal/modules/config"
	"udf_feed/internal/modules/feed"
	feedsvc "udf_feed/internal/modules/feed/service"
	"udf_feed/internal/modules/health"
	healthsvc "udf_feed/internal/modules/health/service"
	telegram "udf_feed/internal/modules/telegram_bot"
	"udf_feed/internal/modules/telemetry"
	"udf_feed/internal/modules/udf_client"
	"udf_feed/internal/notify"
)

func main() {
	fx.New(
		config.Module(),
		telemetry.Module(),
		fx.Invoke(func(cfg *config.Config) error { return cfg.ValidateFeed() }),

		health.Module(),
		udf_client.Module(),
		fx.Provide(
			func(s *healthsvc.State) feedsvc.PollObserver { return s },
			notify.New,
		),
		feed.Module(),
		bridge.Module(),
		bootstrap.Module(),
		telegram.Module(),

		fx.Invoke(func(state *healthsvc.State, df *feedsvc.Datafeed, hub *bridgesvc.Hub) {
			state.RegisterGauge("subscriptions", df.Subscriptions)
			state.RegisterGauge("in_flight", df.InFlight)
			state.RegisterGauge("bridge_clients", hub.Clients)
		}),
	).Run()
}

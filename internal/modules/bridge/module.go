package bridge

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"udf_feed/internal/modules/bridge/service"
	"udf_feed/internal/modules/config"
	feed "udf_feed/internal/modules/feed/service"
	"udf_feed/pkg/logger"
)

// Module serves the datafeed to websocket clients.
func Module() fx.Option {
	return fx.Module("bridge",
		fx.Provide(
			func(df *feed.Datafeed) service.Feed { return df },
			service.NewHub,
		),
		fx.Invoke(run),
	)
}

func run(lc fx.Lifecycle, cfg *config.Config, hub *service.Hub) {
	srv := &http.Server{
		Addr:              cfg.Bridge.Addr,
		Handler:           service.NewRouter(hub, cfg.Bridge.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", cfg.Bridge.Addr)
			if err != nil {
				return err
			}
			go hub.Run(ctx)
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("bridge: serve: %v", err)
				}
			}()
			logger.Info("bridge: listening on %s%s", ln.Addr(), cfg.Bridge.Path)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return srv.Shutdown(stopCtx)
		},
	})
}

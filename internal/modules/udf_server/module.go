package udf_server

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"udf_feed/internal/modules/config"
	"udf_feed/internal/modules/udf_server/service"
	"udf_feed/internal/storage"
	"udf_feed/pkg/logger"
)

// Module serves a UDF endpoint backed by the configured store.
func Module() fx.Option {
	return fx.Module("udf_server",
		fx.Provide(
			newStore,
			service.NewHandler,
		),
		fx.Invoke(run),
	)
}

func newStore(lc fx.Lifecycle, cfg *config.Config) (storage.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	n, err := storage.Seed(ctx, store, cfg.Server.SymbolsFile)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("udf_server: %s store ready, %d catalog symbols seeded", cfg.Storage.Driver, n)

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	refreshDone := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			every := cfg.Server.CatalogRefresh
			if every <= 0 || cfg.Server.SymbolsFile == "" {
				close(refreshDone)
				return nil
			}
			ticker := time.NewTicker(every)
			go func() {
				defer close(refreshDone)
				defer ticker.Stop()
				storage.RefreshCatalog(refreshCtx, store, cfg.Server.SymbolsFile, ticker.C)
			}()
			logger.Info("udf_server: reloading %s every %s", cfg.Server.SymbolsFile, every)
			return nil
		},
		OnStop: func(context.Context) error {
			stopRefresh()
			<-refreshDone
			return store.Close()
		},
	})
	return store, nil
}

func run(lc fx.Lifecycle, cfg *config.Config, h *service.Handler) {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           service.NewRouter(h, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return err
			}
			logger.Info("udf_server: listening on %s", ln.Addr())
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("udf_server: serve: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"udf_feed/internal/modules/config"
	"udf_feed/pkg/logger"
	"udf_feed/pkg/tracing"
)

// Module sets up logging and, when enabled, jaeger tracing. fx's own events
// go through the same zap logger.
func Module() fx.Option {
	return fx.Options(
		fx.WithLogger(NewEventLogger),
		fx.Module("telemetry",
			fx.Invoke(initTracing),
		),
	)
}

var (
	initLogger           = logger.Init
	stderr     io.Writer = os.Stderr
)

// NewEventLogger initialises the process logger from config and hands it to fx.
// When zap cannot be built the failure and fx's events go to stderr.
func NewEventLogger(cfg *config.Config) fxevent.Logger {
	if err := initLogger(cfg.Service.LogLevel, cfg.Service.Name); err != nil {
		fmt.Fprintf(stderr, "telemetry: zap logger unavailable, logging fx events to stderr: %v\n", err)
		return &fxevent.ConsoleLogger{W: stderr}
	}
	return &fxevent.ZapLogger{Logger: logger.InfoLogger}
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Sync()
			return nil
		},
	})
	if !cfg.Tracing.Enabled {
		return
	}

	tracing.SetServiceName(cfg.Service.Name)
	_, closer, err := tracing.InitTracer(tracing.Config{Host: cfg.Tracing.Host, Port: cfg.Tracing.Port})
	if err != nil {
		logger.Warn("tracing disabled: %v", err)
		return
	}
	logger.Info("tracing: reporting to %s:%d", cfg.Tracing.Host, cfg.Tracing.Port)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
}

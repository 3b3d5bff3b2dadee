package config

import "go.uber.org/fx"

// Module provides *Config.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
	)
}

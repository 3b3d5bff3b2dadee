package udf_client

import (
	"udf_feed/internal/modules/udf_client/service"

	"go.uber.org/fx"
)

// Module provides the UDF transport client.
func Module() fx.Option {
	return fx.Module("udf_client",
		fx.Provide(
			service.NewClient,
		),
	)
}

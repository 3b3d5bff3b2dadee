package main

import (
	"go.uber.org/fx"

	"udf_feed/internal/modules/config"
	"udf_feed/internal/modules/telemetry"
	"udf_feed/internal/modules/udf_server"
)

func main() {
	fx.New(
		config.Module(),
		telemetry.Module(),
		udf_server.Module(),
	).Run()
}

package fx

import (
	"talent-trends/internal/api"
	"talent-trends/internal/config"
	"talent-trends/internal/gamedata"
	"talent-trends/internal/logger"
	"talent-trends/internal/server"
	"talent-trends/internal/service"

	"go.uber.org/fx"
)

func provideWCLAPI(client *api.WCLClient) service.WCLAPI {
	return client
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(gamedata.Load),
	// api client
	fx.Provide(api.NewWCLClient),
	fx.Provide(provideWCLAPI),
	// svc
	fx.Provide(service.NewTalentService),
	// server
	fx.Provide(server.NewTalentsServer),
)

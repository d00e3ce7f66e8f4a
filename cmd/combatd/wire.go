//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/config"
	"github.com/cory-johannsen/combatcore/internal/game/event"
	"github.com/cory-johannsen/combatcore/internal/game/session"
	"github.com/cory-johannsen/combatcore/internal/game/stats"
	"github.com/cory-johannsen/combatcore/internal/gameserver"
)

var combatSet = wire.NewSet(
	event.NewBus,
	stats.NewStore,
	session.NewManager,
	gameserver.NewLoggingHost,
	provideBackend,
	provideAdapter,
	providePipeline,
	provideScheduler,
	provideLedger,
	provideScripts,
	provideService,
	wire.Struct(new(App), "*"),
)

func initializeApp(ctx context.Context, cfg config.Config, logger *zap.Logger, now NowFunc) (*App, func(), error) {
	wire.Build(combatSet)
	return nil, nil, nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/config"
	"github.com/cory-johannsen/combatcore/internal/game/damage"
	"github.com/cory-johannsen/combatcore/internal/game/event"
	"github.com/cory-johannsen/combatcore/internal/game/mana"
	"github.com/cory-johannsen/combatcore/internal/game/profile"
	"github.com/cory-johannsen/combatcore/internal/game/regen"
	"github.com/cory-johannsen/combatcore/internal/game/session"
	"github.com/cory-johannsen/combatcore/internal/game/stats"
	"github.com/cory-johannsen/combatcore/internal/gameserver"
	"github.com/cory-johannsen/combatcore/internal/scripting"
	"github.com/cory-johannsen/combatcore/internal/server"
	"github.com/cory-johannsen/combatcore/internal/storage/postgres"
	"github.com/cory-johannsen/combatcore/internal/storage/yamlstore"
)

// NowFunc is the damage pipeline's time source.
type NowFunc func() time.Time

// Backend is the selected profile store and its health probe.
type Backend struct {
	Store profile.Store
	Probe server.Probe
}

// App holds the fully wired combat core.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Bus      *event.Bus
	Stats    *stats.Store
	Sessions *session.Manager
	Ledger   *mana.Ledger
	Regen    *regen.Scheduler
	Service  *gameserver.CombatService
	Scripts  *scripting.Manager
	Backend  Backend
}

func provideBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (Backend, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return Backend{}, nil, fmt.Errorf("connecting to database: %w", err)
		}
		probe := func(ctx context.Context) error {
			return pool.Health(ctx, server.DefaultProbeTimeout)
		}
		return Backend{Store: postgres.NewProfileRepository(pool.DB()), Probe: probe}, pool.Close, nil
	default:
		store, err := yamlstore.New(cfg.Store.Dir)
		if err != nil {
			return Backend{}, nil, fmt.Errorf("opening profile dir: %w", err)
		}
		logger.Info("yaml profile store opened", zap.String("dir", cfg.Store.Dir))
		return Backend{Store: store}, func() {}, nil
	}
}

func provideAdapter(b Backend, st *stats.Store, sessions *session.Manager, host *gameserver.LoggingHost, logger *zap.Logger) *profile.Adapter {
	return profile.NewAdapter(b.Store, st, sessions, host, logger)
}

func providePipeline(cfg config.Config, st *stats.Store, adapter *profile.Adapter, host *gameserver.LoggingHost, sessions *session.Manager, now NowFunc, logger *zap.Logger) *damage.Pipeline {
	co := cfg.Combat.Coefficients
	return damage.NewPipeline(st, adapter, host, host, sessions, logger, damage.Options{
		Coefficients: damage.Coefficients{
			StrengthDamage: co.StrengthDamage,
			DexDamage:      co.DexDamage,
			Armor:          co.Armor,
			StrengthArmor:  co.StrengthArmor,
		},
		DebounceWindow:  cfg.Combat.DebounceWindow,
		RespawnFraction: cfg.Combat.RespawnHealthFraction,
		Debug:           cfg.Combat.DebugMode,
		Now:             now,
	})
}

func provideScheduler(cfg config.Config, st *stats.Store, sessions *session.Manager, logger *zap.Logger) *regen.Scheduler {
	s := regen.NewScheduler(st, sessions, sessions, cfg.Combat.TickInterval, logger)
	s.SetDebug(cfg.Combat.DebugMode)
	return s
}

func provideLedger(st *stats.Store, adapter *profile.Adapter, logger *zap.Logger) *mana.Ledger {
	return mana.NewLedger(st, adapter, logger)
}

func provideScripts(cfg config.Config, st *stats.Store, logger *zap.Logger) (*scripting.Manager, func(), error) {
	mgr := scripting.NewManager(logger, cfg.Scripting.InstructionLimit)
	mgr.LookupState = st.Lookup
	if cfg.Scripting.Dir == "" {
		return mgr, mgr.Close, nil
	}
	if err := mgr.Load(cfg.Scripting.Dir); err != nil {
		return nil, nil, err
	}
	return mgr, mgr.Close, nil
}

func provideService(bus *event.Bus, sessions *session.Manager, adapter *profile.Adapter, pipeline *damage.Pipeline, scheduler *regen.Scheduler, scripts *scripting.Manager, logger *zap.Logger) *gameserver.CombatService {
	if scripts.Loaded() {
		pipeline.SetObserver(scripts)
	}
	svc := gameserver.NewCombatService(bus, sessions, adapter, pipeline, scheduler, logger)
	svc.Register()
	return svc
}

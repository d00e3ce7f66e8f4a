// Package main runs the combat core daemon: regeneration, damage resolution
// and profile persistence behind a gRPC health endpoint. With -replay it
// instead drives the core from a scenario file and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/config"
	"github.com/cory-johannsen/combatcore/internal/observability"
	"github.com/cory-johannsen/combatcore/internal/replay"
	"github.com/cory-johannsen/combatcore/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scenarioPath := flag.String("replay", "", "run a replay scenario file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	if *scenarioPath != "" {
		code := runReplay(ctx, cfg, logger, *scenarioPath)
		_ = logger.Sync()
		os.Exit(code)
	}

	app, cleanup, err := initializeApp(ctx, cfg, logger, time.Now)
	if err != nil {
		logger.Fatal("wiring combat core", zap.Error(err))
	}
	defer cleanup()

	lis, err := net.Listen("tcp", cfg.Health.Addr())
	if err != nil {
		logger.Fatal("listening for health checks", zap.String("addr", cfg.Health.Addr()), zap.Error(err))
	}
	health := server.NewHealthService(lis, app.Backend.Probe, cfg.Health.ProbeInterval, logger)

	lc := server.NewLifecycle(logger, server.DefaultShutdownTimeout)
	lc.Add("combat", app.Service)
	lc.Add("health", health)

	logger.Info("combat core ready",
		zap.String("server", cfg.Server.Name),
		zap.String("store", cfg.Store.Backend),
		zap.Duration("tick_interval", cfg.Combat.TickInterval),
		zap.Bool("scripts", app.Scripts.Loaded()),
		zap.Duration("startup", time.Since(start)),
	)
	if err := lc.Run(ctx); err != nil {
		logger.Error("combat core exited with error", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}

// runReplay drives the core from the scenario at path on a virtual clock and
// returns the process exit code.
func runReplay(ctx context.Context, cfg config.Config, logger *zap.Logger, path string) int {
	sc, err := replay.LoadFile(path)
	if err != nil {
		logger.Error("loading scenario", zap.String("path", path), zap.Error(err))
		return 2
	}

	clock := replay.NewClock(time.Now())
	app, cleanup, err := initializeApp(ctx, cfg, logger, clock.Now)
	if err != nil {
		logger.Error("wiring combat core", zap.Error(err))
		return 2
	}
	defer cleanup()

	driver := replay.NewDriver(app.Bus, app.Stats, app.Ledger, app.Regen, app.Sessions, clock, logger)
	rep, err := driver.Run(ctx, sc)
	app.Service.Stop(ctx)
	if err != nil {
		logger.Error("replay interrupted", zap.Error(err))
		return 2
	}

	for _, f := range rep.Failures {
		fmt.Fprintln(os.Stderr, f)
	}
	fmt.Printf("%s: %d steps, %d failures\n", rep.Scenario, rep.Steps, len(rep.Failures))
	if !rep.OK() {
		return 1
	}
	return 0
}

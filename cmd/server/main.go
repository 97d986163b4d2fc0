package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"

	"topomap/internal/config"
	"topomap/internal/db"
	"topomap/internal/dns"
	"topomap/internal/logger"
	"topomap/internal/poller"
	"topomap/internal/snapshot"
	"topomap/internal/store"
	"topomap/internal/topology"
	"topomap/internal/web"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Init(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	st := store.New(gdb)

	if cfg.VendorsPath != "" {
		count, err := db.SeedVendors(ctx, st, cfg.VendorsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("vendor seeding failed")
		}
		log.Info().Int("vendors", count).Msg("seeded vendor prefixes")
	}

	resolver := dns.NewCachingResolver(cfg.DNSCacheTTL, cfg.DNSTimeout)
	defer resolver.Stop()

	var dump snapshot.DumpFunc
	if cfg.DumpDir != "" {
		dump = snapshot.FileDumper(cfg.DumpDir)
	}

	clock := clockwork.NewRealClock()
	reconciler, err := topology.New(topology.Config{
		Store:    st,
		Resolver: resolver,
		Clock:    clock,
		Logger:   log,
		Dump:     dump,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("reconciler init failed")
	}

	targets, err := poller.LoadTargets(cfg.TargetsPath)
	if err != nil {
		log.Warn().Err(err).Msg("no poll targets loaded, ingest API only")
	}
	if len(targets) > 0 {
		runner, err := poller.NewRunner(poller.RunnerConfig{
			Poller:     poller.New(clock, log, cfg.SNMPTimeout),
			Reconciler: reconciler,
			Targets:    targets,
			Interval:   cfg.PollInterval,
			Workers:    cfg.PollWorkers,
			DNS:        cfg.DNSEnabled,
			Clock:      clock,
			Logger:     log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("poller init failed")
		}
		go func() {
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("poller stopped")
			}
		}()
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	web.SetupRoutes(app, reconciler, log)

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	addr := cfg.WebHost + ":" + cfg.WebPort
	log.Info().Str("addr", addr).Msg("server listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}

	os.Exit(0)
}

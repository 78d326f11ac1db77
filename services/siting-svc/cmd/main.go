package main

import (
	"context"
	"log"

	sitingv1 "siting/api/siting/v1"
	"siting/migrations"
	"siting/pkg/cache"
	"siting/pkg/config"
	"siting/pkg/database"
	"siting/pkg/logger"
	"siting/pkg/metrics"
	"siting/pkg/server"
	"siting/services/siting-svc/internal/engine"
	"siting/services/siting-svc/internal/narrative"
	"siting/services/siting-svc/internal/repository"
	"siting/services/siting-svc/internal/service"
)

// memoryRunLimit сколько прогонов хранится без базы данных
const memoryRunLimit = 1000

func main() {
	cfg, err := config.LoadService("siting-svc")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.InitWithConfig(logger.FromConfig(cfg.Log)); err != nil {
		logger.Warn("Log output fallback to stdout", "error", err)
	}

	ctx := context.Background()

	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.MetricsSubsystem())

	// Движок
	engineCfg, err := engine.DecodeConfig(cfg.Optimizer.Engine)
	if err != nil {
		logger.Fatal("invalid engine configuration", "error", err)
	}
	eng, err := engine.New(engineCfg,
		engine.WithNarrator(narrative.Template{}, cfg.Optimizer.NarrativeTimeout),
		engine.WithSimulatedData(cfg.Optimizer.SimulatedLandUse, cfg.Optimizer.SimulatedHazards),
		engine.WithMetrics(m),
	)
	if err != nil {
		logger.Fatal("failed to create engine", "error", err)
	}

	// История прогонов
	var repo repository.RunRepository
	if cfg.Database.Enabled {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("failed to connect to database", "error", err)
		}

		if cfg.Database.AutoMigrate {
			if _, err := database.Migrate(ctx, pool, migrations.PostgresMigrations, "postgres"); err != nil {
				logger.Fatal("failed to run migrations", "error", err)
			}
		} else {
			logger.Info("Auto-migration is disabled")
		}

		repo = repository.NewPostgresRepository(pool)
	} else {
		logger.Warn("Database disabled, run history is kept in memory", "limit", memoryRunLimit)
		repo = repository.NewMemoryRepository(memoryRunLimit)
	}

	var opts []service.Option
	var resultCache cache.Cache
	if cfg.Cache.Enabled {
		resultCache, err = cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Warn("Failed to init cache, continuing without it", "driver", cfg.Cache.Driver, "error", err)
		} else {
			opts = append(opts, service.WithCache(resultCache))
		}
	}

	sitingService := service.NewSitingService(service.Config{
		Optimizer: cfg.Optimizer,
		Providers: cfg.Providers,
		Report:    cfg.Report,
	}, eng, repo, opts...)

	srv, err := server.New(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	sitingv1.RegisterSitingServiceServer(srv.Registrar(), sitingService)

	srv.OnShutdown(func(context.Context) error {
		return repo.Close()
	})
	if resultCache != nil {
		srv.OnShutdown(func(context.Context) error {
			return resultCache.Close()
		})
	}

	logger.Info("Starting siting service",
		"port", cfg.GRPC.Port,
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
		"database", cfg.Database.Enabled,
		"cache", cfg.Cache.Enabled,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server failed", "error", err)
	}
}

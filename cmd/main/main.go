package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"runtime-observer/src/config"
	datasource "runtime-observer/src/data_source"
	"runtime-observer/src/grpc_control"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"
	"runtime-observer/src/network"
	"runtime-observer/src/normalizer"
	"runtime-observer/src/observer"
	"runtime-observer/src/server"
	"runtime-observer/src/storage"
	"runtime-observer/src/utils"

	"golang.org/x/sync/errgroup"
)

// restSourceName identifies snapshots pushed through the REST API
const restSourceName = "rest"

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file (+ .env / OBSERVER_* overrides)
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Storage
	store, err := storage.NewStore(cfg.MConfig, appLogger.Named("storage"))
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := store.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer store.Close()

	// 2. Engine, server and snapshot loop
	norm := normalizer.NewNormalizer(cfg.DisplaySettings())
	pushSource := datasource.NewPushSnapshotSource(restSourceName, appLogger)
	srv := server.NewAPIServer(cfg.MConfig, pushSource, appLogger.Named("server"))
	obs := observer.NewObserver(norm, store, srv, appLogger.Named("observer"))
	srv.Metrics = obs.Metrics

	// 3. Rebuild views from the last stored snapshots
	if _, err := obs.Replay(ctx); err != nil {
		appLogger.Warning("Replay of stored snapshots failed: %v", err)
	}

	// 4. Sources
	networkManager := network.NewAsyncNetworkManager(cfg.MConfig, appLogger.Named("network"))
	sources, err := datasource.NewSources(cfg.MConfig, networkManager, appLogger.Named("source"))
	if err != nil {
		appLogger.Critical("Failed to create sources: %v", err)
	}
	manager := datasource.NewMultiSourceManager(append(sources, pushSource), appLogger.Named("sources"))

	snapshots := make(chan models.MSnapshot, utils.SnapshotQueueSize)
	sourcesWg := &sync.WaitGroup{}
	if err := manager.Start(ctx, snapshots, sourcesWg); err != nil {
		appLogger.Critical("Failed to start sources: %v", err)
	}

	// 5. Run everything until a signal or the first failure
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting snapshot loop...")
		return obs.Run(gctx, snapshots)
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop()
	})

	if cfg.GrpcPort != 0 {
		control := grpc_control.NewControlService(cfg, manager, *configPath, appLogger.Named("grpc"), networkManager)
		address := fmt.Sprintf("%s:%d", cfg.GrpcHost, cfg.GrpcPort)
		grpcService, err := grpc_control.NewGRPCService(address, control, obs.Healthy, appLogger.Named("grpc"))
		if err != nil {
			appLogger.Critical("Failed to start gRPC service: %v", err)
		}
		g.Go(func() error { return grpcService.Start(gctx) })
	}

	if err := g.Wait(); err != nil {
		appLogger.Error("Shutting down after failure: %v", err)
	} else {
		appLogger.Info("Shutting down...")
	}

	manager.Stop()
	sourcesWg.Wait()
}

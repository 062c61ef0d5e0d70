package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nexum-io/nexum/cmd/engine/admin"
	"github.com/nexum-io/nexum/cmd/engine/container"
	"github.com/nexum-io/nexum/cmd/engine/rpc"
	"github.com/nexum-io/nexum/common/bootstrap"
	"github.com/nexum-io/nexum/common/db"
	"github.com/nexum-io/nexum/common/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap common components (DB + schema, logger, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "nexum-engine",
		bootstrap.WithDBInitHook(func(database *db.DB) error {
			return db.InitSchema(ctx, database)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap engine: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}
	defer serviceContainer.Close()

	log := components.Logger

	// Tick loop: timer fires + lease sweeps
	go func() {
		if err := serviceContainer.Ticker.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("tick loop stopped", "error", err)
		}
	}()

	// Admin HTTP surface
	adminServer := startAdminServer(serviceContainer)

	// gRPC surface
	grpcServer := rpc.NewServer(components.Config.Service.GRPCPort, serviceContainer.RPCService, log)
	grpcErrors := make(chan error, 1)
	go func() {
		grpcErrors <- grpcServer.Start()
	}()

	// Block until error or shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-grpcErrors:
		log.Error("grpc server error", "error", err)
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	// Drain in order: stop accepting RPCs, stop the tick loop, then let
	// the deferred component shutdown close the pool.
	grpcServer.Stop()
	cancel()
	if err := adminServer.Shutdown(context.Background()); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}
}

// startAdminServer configures the echo admin surface and starts it in the
// background
func startAdminServer(c *container.Container) *server.Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	handler := admin.NewHandler(c.Components, c.ExecutionService)
	handler.Register(e)

	adminServer := server.New("admin server", c.Components.Config.Service.AdminPort, e, c.Components.Logger)
	go func() {
		if err := adminServer.Start(); err != nil {
			c.Components.Logger.Error("admin server error", "error", err)
		}
	}()

	return adminServer
}

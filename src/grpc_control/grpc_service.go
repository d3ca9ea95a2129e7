package grpc_control

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"runtime-observer/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// healthPollInterval is how often the snapshot loop health is mirrored
const healthPollInterval = 5 * time.Second

// -----------------------------------------------------------------------------
// GRPCService handles gRPC server lifecycle
// -----------------------------------------------------------------------------

type GRPCService struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	healthy  func() bool
	logger   *logger.Logger
	running  atomic.Bool
}

// -----------------------------------------------------------------------------

// NewGRPCService listens on address and registers the control and health services.
// healthy may be nil, in which case the service always reports SERVING.
func NewGRPCService(address string, control ControlServer, healthy func() bool, logger *logger.Logger) (*GRPCService, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return NewGRPCServiceOn(listener, control, healthy, logger), nil
}

// NewGRPCServiceOn is NewGRPCService on an existing listener
func NewGRPCServiceOn(listener net.Listener, control ControlServer, healthy func() bool, logger *logger.Logger) *GRPCService {
	serverOptions := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(10 * 1024 * 1024), // 10MB
		grpc.MaxSendMsgSize(10 * 1024 * 1024), // 10MB
	}
	server := grpc.NewServer(serverOptions...)

	if control != nil {
		RegisterControlServer(server, control)
	}
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	return &GRPCService{
		server:   server,
		listener: listener,
		health:   healthServer,
		healthy:  healthy,
		logger:   logger,
	}
}

// -----------------------------------------------------------------------------

// Start serves until ctx is done, then stops gracefully.
func (g *GRPCService) Start(ctx context.Context) error {
	g.logger.Info("Starting gRPC service on %s", g.listener.Addr().String())
	g.updateHealth()

	errCh := make(chan error, 1)
	go func() {
		g.running.Store(true)
		errCh <- g.server.Serve(g.listener)
		g.running.Store(false)
	}()

	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			if err != nil && err != grpc.ErrServerStopped {
				return fmt.Errorf("gRPC server failed: %w", err)
			}
			return nil
		case <-ticker.C:
			g.updateHealth()
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return g.Stop(stopCtx)
		}
	}
}

// updateHealth mirrors the snapshot loop health into the standard health service
func (g *GRPCService) updateHealth() {
	state := grpc_health_v1.HealthCheckResponse_SERVING
	if g.healthy != nil && !g.healthy() {
		state = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", state)
	g.health.SetServingStatus(ControlServiceName, state)
}

// -----------------------------------------------------------------------------

// Stop gracefully stops the gRPC server
func (g *GRPCService) Stop(ctx context.Context) error {
	g.logger.Info("Stopping gRPC service...")
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-ctx.Done():
		g.logger.Warning("gRPC graceful shutdown timeout, forcing stop...")
		g.server.Stop()
	case <-done:
		g.logger.Info("gRPC service stopped gracefully")
	}

	g.running.Store(false)
	return nil
}

// -----------------------------------------------------------------------------

// IsRunning returns whether the gRPC server is running
func (g *GRPCService) IsRunning() bool {
	return g.running.Load()
}

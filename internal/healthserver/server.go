// Package healthserver exposes store reachability through the gRPC health protocol.
package healthserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the marketplace engine.
const ServiceName = "marketplace.v1.Marketplace"

const (
	defaultProbeInterval = 5 * time.Second
	defaultProbeTimeout  = time.Second
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithProbeInterval overrides how often the pinger is probed.
func WithProbeInterval(interval time.Duration) Option {
	return func(server *Server) {
		if interval > 0 {
			server.probeInterval = interval
		}
	}
}

// WithLogger attaches a logger for status transitions.
func WithLogger(logger *zap.Logger) Option {
	return func(server *Server) {
		if logger != nil {
			server.logger = logger
		}
	}
}

// Server tracks the serving status of the marketplace.
type Server struct {
	health        *health.Server
	pinger        Pinger
	probeInterval time.Duration
	logger        *zap.Logger
	lastStatus    healthpb.HealthCheckResponse_ServingStatus
}

// New constructs a health server probing pinger. Status starts as NOT_SERVING.
func New(pinger Pinger, options ...Option) *Server {
	server := &Server{
		health:        health.NewServer(),
		pinger:        pinger,
		probeInterval: defaultProbeInterval,
		logger:        zap.NewNop(),
		lastStatus:    healthpb.HealthCheckResponse_NOT_SERVING,
	}
	for _, option := range options {
		option(server)
	}
	server.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return server
}

// Register attaches the health service to grpcServer.
func (server *Server) Register(grpcServer *grpc.Server) {
	healthpb.RegisterHealthServer(grpcServer, server.health)
}

// Probe pings once and records the resulting status.
func (server *Server) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	probeCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()
	status := healthpb.HealthCheckResponse_SERVING
	if err := server.pinger.Ping(probeCtx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if server.lastStatus != status {
			server.logger.Warn("store ping failed", zap.Error(err))
		}
	}
	server.setStatus(status)
	return status
}

// Run probes until ctx is canceled, then marks every service NOT_SERVING.
func (server *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(server.probeInterval)
	defer ticker.Stop()
	server.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			server.health.Shutdown()
			return
		case <-ticker.C:
			server.Probe(ctx)
		}
	}
}

func (server *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	if server.lastStatus != status {
		server.logger.Info("health status changed", zap.String("status", status.String()))
	}
	server.lastStatus = status
	server.health.SetServingStatus("", status)
	server.health.SetServingStatus(ServiceName, status)
}

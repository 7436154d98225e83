// Package grpc serves the standard gRPC health protocol for the traffic daemon.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the health service name reported by the daemon.
const ServiceName = "mocktraffic"

// Config holds the gRPC server configuration.
type Config struct {
	Port                 int
	MaxConcurrentStreams uint32
	KeepaliveTime        time.Duration
	KeepaliveTimeout     time.Duration
	// CheckInterval is how often the store is pinged to refresh the status.
	CheckInterval time.Duration
	// StopTimeout bounds the graceful stop before connections are closed.
	StopTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:                 9090,
		MaxConcurrentStreams: 100,
		KeepaliveTime:        30 * time.Second,
		KeepaliveTimeout:     10 * time.Second,
		CheckInterval:        10 * time.Second,
		StopTimeout:          30 * time.Second,
	}
}

// Pinger checks a dependency the daemon cannot serve without.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the gRPC health server.
type Server struct {
	config *Config
	pinger Pinger
	logger *slog.Logger

	health *health.Server

	mu         sync.Mutex
	grpcServer *grpc.Server
	serving    atomic.Bool
}

// NewServer creates a gRPC health server. A nil pinger reports SERVING for as
// long as the server is up.
func NewServer(cfg *Config, pinger Pinger, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		pinger: pinger,
		logger: logger,
		health: health.NewServer(),
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) buildServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxConcurrentStreams(s.config.MaxConcurrentStreams),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    s.config.KeepaliveTime,
			Timeout: s.config.KeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(s.loggingInterceptor()),
		grpc.ChainStreamInterceptor(s.streamLoggingInterceptor()),
	}
}

// Start listens on the configured port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves the health protocol on lis until ctx is cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(s.buildServerOptions()...)
	healthpb.RegisterHealthServer(srv, s.health)

	s.mu.Lock()
	s.grpcServer = srv
	s.mu.Unlock()

	s.serving.Store(true)
	s.refresh(ctx)
	s.logger.Info("gRPC server starting", "address", lis.Addr().String())

	monitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.monitor(monitorCtx)

	go func() {
		<-monitorCtx.Done()
		if ctx.Err() != nil {
			_ = s.Stop(context.Background())
		}
	}()

	if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("serving gRPC: %w", err)
	}
	return nil
}

// Stop reports NOT_SERVING and gracefully stops the server, forcing it closed
// after the stop timeout or when ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	s.serving.Store(false)
	s.health.Shutdown()

	s.mu.Lock()
	srv := s.grpcServer
	s.grpcServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("gRPC server stopping")
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gRPC server stopped gracefully")
	case <-time.After(s.config.StopTimeout):
		s.logger.Warn("gRPC server graceful stop timed out, forcing stop")
		srv.Stop()
	case <-ctx.Done():
		s.logger.Warn("context cancelled, forcing stop")
		srv.Stop()
	}
	return nil
}

// IsServing returns whether the server is currently up.
func (s *Server) IsServing() bool {
	return s.serving.Load()
}

func (s *Server) monitor(ctx context.Context) {
	if s.pinger == nil || s.config.CheckInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// refresh pings the store and updates the reported status.
func (s *Server) refresh(ctx context.Context) {
	if !s.serving.Load() {
		return
	}
	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn("health check failed: store unavailable", "error", err)
			s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			return
		}
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

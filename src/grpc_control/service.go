package grpc_control

import (
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"visits-observer/src/logger"
	"visits-observer/src/models"
)

// ControlServer exposes the standard gRPC health service. The status of the
// configured service name follows the controller: NOT_SERVING until it is
// listening, SERVING afterwards, NOT_SERVING again once stopped.
type ControlServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Service string

	server *grpc.Server
	health *health.Server

	mu      sync.Mutex
	stopped bool
}

// NewControlServer creates a new instance of ControlServer
func NewControlServer(cfg *models.MConfig, log *logger.Logger) *ControlServer {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	healthServer.SetServingStatus(cfg.Name, healthpb.HealthCheckResponse_NOT_SERVING)

	return &ControlServer{
		Config:  cfg,
		Logger:  log,
		Service: cfg.Name,
		server:  grpcServer,
		health:  healthServer,
	}
}

// -----------------------------------------------------------------------------

// Enabled reports whether a gRPC port is configured
func (s *ControlServer) Enabled() bool {
	return s.Config.GrpcPort != 0
}

// -----------------------------------------------------------------------------

// SetServing updates the status reported for the service name
func (s *ControlServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(s.Service, status)
	s.Logger.Info("Health status for %q: %s", s.Service, status)
}

// -----------------------------------------------------------------------------

// Start listens on grpc_host:grpc_port and serves until Stop
func (s *ControlServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.GrpcHost, s.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.Logger.Info("Starting gRPC Control Server on %s", addr)
	return s.Serve(lis)
}

// -----------------------------------------------------------------------------

// Serve accepts connections on lis until Stop
func (s *ControlServer) Serve(lis net.Listener) error {
	if err := s.server.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Shutdown flips every status to NOT_SERVING without closing connections
func (s *ControlServer) Shutdown() {
	s.health.Shutdown()
}

// -----------------------------------------------------------------------------

// Stop reports NOT_SERVING and drains the server
func (s *ControlServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	s.health.Shutdown()
	s.server.GracefulStop()
}

package health

import (
	"google.golang.org/grpc"

	healthgrpc "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server wraps grpc health server
type Server struct {
	server *healthgrpc.Server
}

// NewServer creates health server using default grpc health server.
func NewServer() *Server {
	return &Server{
		server: healthgrpc.NewServer(),
	}
}

// InitService marks serviceName as SERVING.
func (h *Server) InitService(serviceName string) {
	h.server.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
}

// StopService marks serviceName as NOT_SERVING while leaving other services untouched.
func (h *Server) StopService(serviceName string) {
	h.server.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Shutdown sets all serving status to NOT_SERVING.
func (h *Server) Shutdown() {
	h.server.Shutdown()
}

// Resume sets all serving status to SERVING.
func (h *Server) Resume() {
	h.server.Resume()
}

// Register registers health server.
func (h *Server) Register(grpc *grpc.Server) {
	healthpb.RegisterHealthServer(grpc, h.server)
}

// HealthServer exposes the underlying health service, mainly for in-process checks.
func (h *Server) HealthServer() healthpb.HealthServer {
	return h.server
}

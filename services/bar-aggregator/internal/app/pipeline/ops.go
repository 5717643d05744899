package pipeline

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/grpclib/health"
	"github.com/muhammadchandra19/bar-aggregator/pkg/httplib/healthcheck"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	"google.golang.org/grpc"
)

// OpsServer serves /health and /metrics over HTTP and the gRPC health service.
type OpsServer struct {
	httpAddr string
	grpcAddr string
	logger   logger.Interface

	httpServer   *http.Server
	grpcServer   *grpc.Server
	httpListener net.Listener
	grpcListener net.Listener
}

// NewOpsServer creates an OpsServer. An empty address disables that listener.
func NewOpsServer(
	httpAddr, grpcAddr string,
	metricsHandler http.Handler,
	probe healthcheck.Probe,
	healthServer *health.Server,
	logger logger.Interface,
) *OpsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)

	grpcServer := grpc.NewServer()
	healthServer.Register(grpcServer)

	return &OpsServer{
		httpAddr: httpAddr,
		grpcAddr: grpcAddr,
		logger:   logger,
		httpServer: &http.Server{
			Handler:           healthcheck.HealthCheck{Probe: probe}.Handler(mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
		grpcServer: grpcServer,
	}
}

// Start binds the listeners and serves in the background.
func (s *OpsServer) Start() error {
	if s.httpAddr != "" {
		lis, err := net.Listen("tcp", s.httpAddr)
		if err != nil {
			return errors.NewErrorDetailsWithCause("failed to listen for http", string(errors.GeneralInternalServerError), "APP_HTTP_ADDR", err)
		}
		s.httpListener = lis

		go func() {
			if err := s.httpServer.Serve(lis); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				s.logger.Error(errors.TracerFromError(err), logger.Field{Key: "action", Value: "serve_http"})
			}
		}()
		s.logger.Info("ops http server listening", logger.Field{Key: "addr", Value: lis.Addr().String()})
	}

	if s.grpcAddr != "" {
		lis, err := net.Listen("tcp", s.grpcAddr)
		if err != nil {
			return errors.NewErrorDetailsWithCause("failed to listen for grpc", string(errors.GeneralInternalServerError), "APP_GRPC_ADDR", err)
		}
		s.grpcListener = lis

		go func() {
			if err := s.grpcServer.Serve(lis); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
				s.logger.Error(errors.TracerFromError(err), logger.Field{Key: "action", Value: "serve_grpc"})
			}
		}()
		s.logger.Info("ops grpc server listening", logger.Field{Key: "addr", Value: lis.Addr().String()})
	}

	return nil
}

// HTTPAddr returns the bound HTTP address, or "" when disabled or not started.
func (s *OpsServer) HTTPAddr() string {
	if s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" when disabled or not started.
func (s *OpsServer) GRPCAddr() string {
	if s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Shutdown stops both servers, waiting for in-flight requests until ctx expires.
func (s *OpsServer) Shutdown(ctx context.Context) error {
	var err error
	if s.httpListener != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	if s.grpcListener != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpcServer.Stop()
		}
	}

	return err
}

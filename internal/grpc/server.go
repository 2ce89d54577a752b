package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"issueInsightsTracker/internal/auth"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// CheckFunc reports whether the process can serve traffic.
type CheckFunc func(ctx context.Context) error

// Server is the gRPC listener. It serves the standard health service
// without credentials and the Insights service behind a bearer token.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
	check  CheckFunc
	log    *zap.Logger
}

// New listens on addr. The health status starts as SERVING when check passes.
// insights may be nil, in which case only health is served.
func New(addr string, tokens *auth.Tokens, check CheckFunc, insights InsightsServer, log *zap.Logger) (*Server, error) {
	if tokens == nil {
		return nil, errors.New("tokens are required")
	}
	if addr == "" {
		addr = ":50051"
	}
	if log == nil {
		log = zap.NewNop()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(auth.NewUnaryAuthInterceptor(tokens, healthCheckMethod)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if insights != nil {
		RegisterInsightsServer(srv, insights)
	}

	s := &Server{srv: srv, health: hs, lis: lis, check: check, log: log}
	s.refresh(context.Background())
	return s, nil
}

// Addr is the bound listener address.
func (s *Server) Addr() net.Addr { return s.lis.Addr() }

// Serve blocks until the server stops.
func (s *Server) Serve() error {
	if err := s.srv.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// WatchHealth re-runs the check every interval until ctx is done.
func (s *Server) WatchHealth(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.refresh(ctx)
		}
	}
}

func (s *Server) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := s.check(cctx)
		cancel()
		if err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
}

// Shutdown stops gracefully, or hard when ctx expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() { s.srv.GracefulStop(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.srv.Stop()
		return ctx.Err()
	}
}

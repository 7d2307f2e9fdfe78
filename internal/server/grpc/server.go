package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/logging"
	"github.com/dmitrijs2005/foliokeeper/internal/server/identity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	defaultHealthInterval = 15 * time.Second
	healthPingTimeout     = 2 * time.Second
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type GRPCServer struct {
	address        string
	resolver       *identity.Resolver
	db             Pinger
	healthInterval time.Duration
	health         *health.Server
	logger         logging.Logger
}

// NewGRPCServer builds the server. db may be nil, in which case health
// always reports SERVING.
func NewGRPCServer(a string, l logging.Logger, r *identity.Resolver, db Pinger, healthInterval time.Duration) *GRPCServer {
	if healthInterval <= 0 {
		healthInterval = defaultHealthInterval
	}
	return &GRPCServer{
		address:        a,
		logger:         l.With("module", "grpc_server"),
		resolver:       r,
		db:             db,
		healthInterval: healthInterval,
		health:         health.NewServer(),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on l until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, l net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.identityInterceptor))

	healthpb.RegisterHealthServer(srv, s.health)
	srv.RegisterService(&IdentityServiceDesc, s)

	s.checkHealth(ctx)
	go s.watchHealth(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", l.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(l); err != nil {
		return err
	}

	return nil
}

func (s *GRPCServer) watchHealth(ctx context.Context) {
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkHealth(ctx)
		}
	}
}

// checkHealth sets the overall and identity service status from a
// database ping.
func (s *GRPCServer) checkHealth(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		err := s.db.PingContext(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn(ctx, "database ping failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(IdentityServiceName, st)
}

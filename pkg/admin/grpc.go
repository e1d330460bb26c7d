package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServiceName is reported next to the overall ("") status.
const GRPCServiceName = "nostr-jobs"

const defaultSyncInterval = time.Second

// GRPCHealthServer publishes relay health over the standard gRPC health
// checking protocol, for orchestrators that probe gRPC rather than HTTP.
type GRPCHealthServer struct {
	addr     string
	health   HealthReporter
	interval time.Duration
	srv      *grpc.Server
	status   *grpchealth.Server
	logger   *log.Logger
}

func NewGRPCHealthServer(addr string, health HealthReporter, interval time.Duration, logger *log.Logger) *GRPCHealthServer {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	status := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, status)

	return &GRPCHealthServer{
		addr:     addr,
		health:   health,
		interval: interval,
		srv:      srv,
		status:   status,
		logger:   logger,
	}
}

func (s *GRPCHealthServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc health listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve mirrors the health flag into the gRPC status every interval until
// ctx ends.
func (s *GRPCHealthServer) Serve(ctx context.Context, ln net.Listener) error {
	s.sync()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("grpc health server listening on %s", ln.Addr())
		errCh <- s.srv.Serve(ln)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			if err == nil || errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return fmt.Errorf("grpc health server: %w", err)
		case <-ticker.C:
			s.sync()
		case <-ctx.Done():
			s.stop()
			return nil
		}
	}
}

// stop lets in-flight checks finish, but open Watch streams never end on
// their own, so GracefulStop is bounded by the shutdown timeout.
func (s *GRPCHealthServer) stop() {
	s.status.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		s.srv.Stop()
		<-done
	}
	s.logger.Printf("grpc health server stopped")
}

func (s *GRPCHealthServer) sync() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s.health.IsHealthy() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.status.SetServingStatus("", st)
	s.status.SetServingStatus(GRPCServiceName, st)
}

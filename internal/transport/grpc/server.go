package grpcx

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName: имя сервиса в grpc.health.v1.
const ServiceName = "burner.chat"

// Pinger: проверка зависимости, от которой зависит SERVING (Redis).
type Pinger func(ctx context.Context) error

// Server: ops-сервер: только health и reflection.
type Server struct {
	addr     string
	gs       *grpc.Server
	ln       net.Listener
	health   *health.Server
	ping     Pinger
	interval time.Duration
	stop     chan struct{}
}

func New(addr string, ping Pinger, interval time.Duration) *Server {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{
		addr:     addr,
		gs:       gs,
		health:   hs,
		ping:     ping,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start слушает addr и запускает фоновую проверку зависимостей.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.ln = ln
	slog.Info("grpc listening", "addr", ln.Addr().String())
	go func() {
		if err := s.gs.Serve(s.ln); err != nil {
			slog.Error("grpc serve stopped", slog.Any("err", err))
		}
	}()
	go s.watch(ctx)

	return nil
}

// Addr: фактический адрес после Start (удобно при ":0").
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) watch(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-t.C:
			s.probe(ctx)
		}
	}
}

func (s *Server) probe(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.ping(ctx); err != nil {
		slog.WarnContext(ctx, "grpc health: dependency down", slog.Any("err", err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *Server) Stop(ctx context.Context) {
	close(s.stop)
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Error("grpc graceful stop timeout; forcing stop")
		s.gs.Stop()
	}
}

package grpc

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/shestoi/adminpanel/platform/observability"
)

// Server - отдельный gRPC сервер только со стандартным health service.
// Нужен оркестратору (liveness и readiness проверки), бизнес-трафик идёт по HTTP.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// New создаёт сервер в статусе NOT_SERVING: готовность включается явно после проверки зависимостей.
// Каждая проверка получает серверный span сервиса serviceName.
func New(serviceName string, logger *zap.Logger, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.UnaryInterceptor(observability.GRPCUnaryServerInterceptor(serviceName))}, opts...)
	srv := grpc.NewServer(opts...)
	h := health.NewServer()
	h.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, h)
	return &Server{srv: srv, health: h, logger: logger}
}

// SetServing переводит весь сервер (пустое имя) в SERVING
func (s *Server) SetServing() {
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}

// SetNotServing используется при graceful shutdown
func (s *Server) SetNotServing() {
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

// Start слушает addr в отдельной горутине
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen health grpc %s: %w", addr, err)
	}

	go func() {
		s.logger.Info("grpc health server started", zap.String("addr", addr))
		if err := s.srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			s.logger.Error("grpc health server failed", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown сначала снимает готовность, затем останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetNotServing()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.srv.Stop()
		return ctx.Err()
	}
}

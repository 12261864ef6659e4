package server

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/v1"
)

// HealthServer отдает grpc.health.v1.Health для проверок оркестратора.
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewHealthServer стартует в NOT_SERVING до вызова SetServing(true).
func NewHealthServer(logger *zap.Logger) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h)

	return &HealthServer{srv: srv, health: h, logger: logger.Named("grpc-health")}
}

func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	return h.srv.Serve(lis)
}

func (h *HealthServer) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
}

// Pinger хранилище, которое умеет сообщить, отвечает ли оно.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ready переходит в SERVING, только если ответили все pingers.
func (h *HealthServer) Ready(ctx context.Context, pingers ...Pinger) error {
	for _, p := range pingers {
		if err := p.Ping(ctx); err != nil {
			h.SetServing(false)
			h.logger.Warn("store not ready", zap.Error(err))
			return err
		}
	}
	h.SetServing(true)
	return nil
}

// Stop переводит все сервисы в NOT_SERVING и дожидается завершения запросов.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.srv.GracefulStop()
}

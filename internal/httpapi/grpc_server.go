package httpapi

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"reftracker.org/internal/apperr"
	"reftracker.org/internal/obs"
)

// HealthService publishes storage readiness through grpc.health.v1.
type HealthService struct {
	server    *health.Server
	readiness ReadyProbe
}

// NewHealthService creates the gRPC health wrapper. It reports NOT_SERVING
// until the first successful probe.
func NewHealthService(r ReadyProbe) *HealthService {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthService{server: srv, readiness: r}
}

// Refresh probes storage once and updates the serving status.
func (h *HealthService) Refresh(ctx context.Context) error {
	serving := healthpb.HealthCheckResponse_SERVING
	err := h.readiness.Check(ctx)
	if err != nil {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}
	obs.SetReady(err == nil)
	h.server.SetServingStatus("", serving)
	h.server.SetServingStatus(serviceName, serving)
	return err
}

// Run refreshes the status every interval until ctx ends, then marks the
// service as shutting down.
func (h *HealthService) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		if err := h.Refresh(probeCtx); err != nil && ctx.Err() == nil {
			logger.WarnContext(ctx, "readiness probe failed", slog.Any("error", err))
		}
		cancel()
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
		}
	}
}

// NewGRPCServer builds a gRPC server exposing the health service. Handler
// errors are translated to status codes and logged.
func NewGRPCServer(h *HealthService, logger *slog.Logger) *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(errorInterceptor(logger)))
	healthpb.RegisterHealthServer(srv, h.server)
	return srv
}

func errorInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, classified := apperr.As(err); !classified {
			if _, isStatus := status.FromError(err); isStatus {
				return resp, err
			}
			logger.ErrorContext(ctx, "grpc handler failed", slog.String("method", info.FullMethod), slog.Any("error", err))
		}
		return resp, apperr.GRPCStatus(err)
	}
}

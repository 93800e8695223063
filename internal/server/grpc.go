package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer exposes the standard health service for orchestrators.
type GRPCServer struct {
	*grpc.Server
	health *health.Server
}

func NewGRPCServer(log *slog.Logger) *GRPCServer {
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(LoggingInterceptor(log)),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	// Enable gRPC reflection for grpcurl and friends
	reflection.Register(srv)

	return &GRPCServer{Server: srv, health: healthServer}
}

// Shutdown reports NOT_SERVING and then drains in-flight calls.
func (s *GRPCServer) Shutdown() {
	s.health.Shutdown()
	s.GracefulStop()
}

// LoggingInterceptor logs every unary call with its duration and outcome.
func LoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		if err != nil {
			log.Warn("gRPC request failed", "method", info.FullMethod, "duration", duration, "error", err)
		} else {
			log.Debug("gRPC request", "method", info.FullMethod, "duration", duration)
		}

		return resp, err
	}
}

package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name reported for the gate board.
const ServiceName = "gatewatch.v1.GateService"

// NewGRPCServer creates a gRPC server that logs through logger and registers
// the health service and reflection. Both the overall and the gate service
// status start as SERVING; call health.Shutdown when draining.
func NewGRPCServer(logger *slog.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.UnaryInterceptor(unaryInterceptor(logger)))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv, hs
}

package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reporting model readiness.
// The empty service name reports process liveness.
const HealthService = "voicetech.TTS"

func newGRPCServer(modelLoaded bool) (*grpc.Server, *health.Server) {
	gs := grpc.NewServer()
	hs := health.NewServer()

	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if modelLoaded {
		status = healthpb.HealthCheckResponse_SERVING
	}

	hs.SetServingStatus(HealthService, status)

	return gs, hs
}

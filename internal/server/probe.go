package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ErrModelNotLoaded is returned by the probes when the process is up but no
// model bundle is loaded.
var ErrModelNotLoaded = errors.New("server is up but no model is loaded")

// ProbeHTTP queries /health on addr. With requireModel it also fails when
// the server reports no model.
func ProbeHTTP(ctx context.Context, addr string, requireModel bool) error {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %s", resp.Status)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}

	if requireModel && !body.ModelLoaded {
		return ErrModelNotLoaded
	}

	return nil
}

// ProbeGRPC runs a grpc.health.v1 check against addr. An empty service
// checks liveness; HealthService checks model readiness.
func ProbeGRPC(ctx context.Context, addr, service string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("grpc client %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return fmt.Errorf("grpc health check: %w", err)
	}

	if st := resp.GetStatus(); st != healthpb.HealthCheckResponse_SERVING {
		if service == HealthService {
			return fmt.Errorf("%w (grpc status %s)", ErrModelNotLoaded, st)
		}

		return fmt.Errorf("grpc health status %s", st)
	}

	return nil
}

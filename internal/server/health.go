package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the service name reported alongside the overall status.
const HealthServiceName = "combatcore.v1.Combat"

// DefaultProbeTimeout bounds a single backend probe.
const DefaultProbeTimeout = 5 * time.Second

// Probe checks a backend dependency. A nil Probe always passes.
type Probe func(ctx context.Context) error

// HealthService serves the standard gRPC health protocol and flips between
// SERVING and NOT_SERVING as the probe succeeds or fails.
type HealthService struct {
	lis      net.Listener
	grpc     *grpc.Server
	health   *health.Server
	probe    Probe
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	serving bool
}

// NewHealthService creates a HealthService serving on lis. The status starts
// NOT_SERVING until the first probe passes.
//
// Precondition: lis and logger must be non-nil; interval must be > 0.
func NewHealthService(lis net.Listener, probe Probe, interval time.Duration, logger *zap.Logger) *HealthService {
	srv := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &HealthService{
		lis:      lis,
		grpc:     srv,
		health:   hs,
		probe:    probe,
		interval: interval,
		logger:   logger,
	}
}

// Addr returns the listen address.
func (h *HealthService) Addr() net.Addr {
	return h.lis.Addr()
}

// Check runs the probe once and updates the served status.
//
// Postcondition: Returns the probe error, or nil when serving.
func (h *HealthService) Check(ctx context.Context) error {
	var err error
	if h.probe != nil {
		probeCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
		err = h.probe(probeCtx)
		cancel()
	}
	h.setServing(err == nil, err)
	return err
}

// Serving reports the last published status.
func (h *HealthService) Serving() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.serving
}

func (h *HealthService) setServing(ok bool, cause error) {
	h.mu.Lock()
	changed := h.serving != ok
	h.serving = ok
	h.mu.Unlock()

	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ok {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(HealthServiceName, status)
	if !changed {
		return
	}
	if ok {
		h.logger.Info("health status changed", zap.String("status", status.String()))
		return
	}
	h.logger.Warn("health status changed", zap.String("status", status.String()), zap.Error(cause))
}

// Start serves health checks and probes every interval until ctx is cancelled.
func (h *HealthService) Start(ctx context.Context) error {
	_ = h.Check(ctx)

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = h.Check(ctx)
			}
		}
	}()

	h.logger.Info("health endpoint listening", zap.String("addr", h.lis.Addr().String()))
	if err := h.grpc.Serve(h.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks the service NOT_SERVING and drains in-flight checks, forcing a
// stop when ctx expires.
func (h *HealthService) Stop(ctx context.Context) {
	h.health.Shutdown()
	done := make(chan struct{})
	go func() {
		h.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.grpc.Stop()
	}
}

// Package health serves the standard gRPC health protocol for the honeypot,
// tracking the optional backing stores in the background.
package health

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"honeypot-lab/pkg/logger"
)

// ServiceName is the name registered for the conversation service
const ServiceName = "honeypot.v1.HoneypotService"

// Probe reports the health of one dependency
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Register registers the gRPC health service and keeps its status in sync
// with probes until ctx is cancelled
func Register(ctx context.Context, grpcServer *grpc.Server, interval time.Duration, log *logger.Logger, probes ...Probe) *health.Server {
	healthServer := health.NewServer()
	setAll(healthServer, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	if len(probes) == 0 {
		return healthServer
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	log = log.WithComponent("grpc-health")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			status := Evaluate(ctx, log, probes...)
			setAll(healthServer, status)

			select {
			case <-ctx.Done():
				healthServer.Shutdown()
				return
			case <-ticker.C:
			}
		}
	}()

	return healthServer
}

// Evaluate runs every probe and folds them into one serving status
func Evaluate(ctx context.Context, log *logger.Logger, probes ...Probe) grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	for _, p := range probes {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("probe", p.Name).Msg("dependency unhealthy")
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	return status
}

func setAll(s *health.Server, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.SetServingStatus("", status)
	s.SetServingStatus(ServiceName, status)
}

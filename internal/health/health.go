// Package health reports dependency health over the gRPC health protocol.
package health

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is reported next to the overall "" service.
const ServiceName = "storefront"

type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Checker flips the health status between SERVING and NOT_SERVING from the
// result of its probes. Every probe has to pass.
type Checker struct {
	probes   []Probe
	server   *health.Server
	serving  atomic.Bool
	stopped  atomic.Bool
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewChecker(logger *slog.Logger, interval time.Duration, probes ...Probe) *Checker {
	c := &Checker{
		probes:   probes,
		server:   health.NewServer(),
		interval: interval,
		timeout:  2 * time.Second,
		logger:   logger,
	}
	c.set(false)
	return c
}

func (c *Checker) Run(ctx context.Context) {
	c.Probe(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Probe runs every probe once and publishes the result.
func (c *Checker) Probe(ctx context.Context) bool {
	ok := true
	for _, p := range c.probes {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			c.logger.Warn("dependency unhealthy", "dependency", p.Name, "error", err)
			ok = false
		}
	}
	if ok != c.serving.Load() {
		c.logger.Info("health status changed", "serving", ok)
	}
	c.set(ok)
	return ok
}

func (c *Checker) Serving() bool {
	return c.serving.Load()
}

// Shutdown reports NOT_SERVING from now on.
func (c *Checker) Shutdown() {
	c.stopped.Store(true)
	c.serving.Store(false)
	c.server.Shutdown()
}

func (c *Checker) set(ok bool) {
	if c.stopped.Load() {
		return
	}
	c.serving.Store(ok)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(ServiceName, status)
}

func NewServer(c *Checker) *grpc.Server {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(s, c.server)
	reflection.Register(s)
	return s
}

type pinger interface {
	Ping(ctx context.Context) error
}

func SQLProbe(db pinger) Probe {
	return Probe{Name: "sql", Check: db.Ping}
}

func RedisProbe(client *redis.Client) Probe {
	return Probe{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

func MongoProbe(client *mongo.Client) Probe {
	return Probe{Name: "mongo", Check: func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}}
}

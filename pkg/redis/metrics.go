package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

var (
	redisRequestsTotal   *prometheus.CounterVec
	redisErrorsTotal     *prometheus.CounterVec
	redisRequestDuration *prometheus.HistogramVec
)

func init() {
	redisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_requests_total",
			Help: "Total number of Redis requests by method.",
		},
		[]string{"method"},
	)
	redisErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Total number of Redis errors by method.",
		},
		[]string{"method"},
	)
	redisRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_request_duration_seconds",
			Help:    "Redis request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	prometheus.MustRegister(redisRequestsTotal, redisErrorsTotal, redisRequestDuration)
}

// MetricsHook reports every command and pipeline to Prometheus.
// A missing key (redis.Nil) is not counted as an error.
type MetricsHook struct{}

var _ goredis.Hook = MetricsHook{}

func (MetricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		observe("dial", 0, err)
		return conn, err
	}
}

func (MetricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observe(cmd.Name(), time.Since(start), err)
		return err
	}
}

func (MetricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observe("pipeline", time.Since(start), err)
		return err
	}
}

func observe(method string, elapsed time.Duration, err error) {
	redisRequestsTotal.WithLabelValues(method).Inc()
	if elapsed > 0 {
		redisRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	}
	if err != nil && !errors.Is(err, goredis.Nil) {
		redisErrorsTotal.WithLabelValues(method).Inc()
	}
}

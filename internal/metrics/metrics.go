package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go-shop-admin/internal/event"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_admin_http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shop_admin_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_admin_auth_events_total",
			Help: "Authentication and administration events by type and outcome.",
		},
		[]string{"event", "outcome"},
	)

	TokenFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_admin_token_failures_total",
			Help: "Rejected bearer tokens by reason.",
		},
		[]string{"reason"},
	)

	PermissionDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_admin_permission_denials_total",
			Help: "Requests denied by the permission check, by required capability.",
		},
		[]string{"capability"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_admin_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter, by budget.",
		},
		[]string{"class"},
	)
)

// CountEvents increments AuthEvents for every event on the bus until ctx ends.
func CountEvents(ctx context.Context, bus event.Bus) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			AuthEvents.WithLabelValues(string(e.Type), e.Status).Inc()
		}
	}
}

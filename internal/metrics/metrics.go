package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chainforge",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of successful service starts.",
		}, []string{"service"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chainforge",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of service stops, explicit or via process exit.",
		}, []string{"service"},
	)
	serviceRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "chainforge",
			Subsystem: "service",
			Name:      "running",
			Help:      "Whether a service is currently running (1) or not (0).",
		}, []string{"service"},
	)
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chainforge",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Proxied HTTP requests by upstream status class.",
		}, []string{"code"},
	)
	gatewayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chainforge",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "End-to-end duration of proxied HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	gatewayTunnels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chainforge",
			Subsystem: "gateway",
			Name:      "websocket_tunnels",
			Help:      "Currently open WebSocket tunnels.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serviceStarts, serviceStops, serviceRunning, gatewayRequests, gatewayDuration, gatewayTunnels}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// RegisterDefault registers against the default prometheus registry.
func RegisterDefault() error { return Register(prometheus.DefaultRegisterer) }

// Handler returns an http.Handler serving the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncStart(service string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(service).Inc()
		serviceRunning.WithLabelValues(service).Set(1)
	}
}

func IncStop(service string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(service).Inc()
		serviceRunning.WithLabelValues(service).Set(0)
	}
}

func ObserveGatewayRequest(code string, elapsed time.Duration) {
	if regOK.Load() {
		gatewayRequests.WithLabelValues(code).Inc()
		gatewayDuration.Observe(elapsed.Seconds())
	}
}

func TunnelOpened() {
	if regOK.Load() {
		gatewayTunnels.Inc()
	}
}

func TunnelClosed() {
	if regOK.Load() {
		gatewayTunnels.Dec()
	}
}

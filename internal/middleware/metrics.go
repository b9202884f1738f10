package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisErrors counts Redis command failures observed by the cache hook.
var RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jammer_redis_errors_total",
	Help: "Total number of Redis command errors by command name",
}, []string{"command"})

// ActiveWebSockets tracks websocket handler goroutines currently running.
var ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "jammer_active_websockets",
	Help: "Number of WebSocket handlers currently serving a connection",
})

// InitMetrics sets up the Prometheus HTTP metrics collector for the service.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware records request count, latency and in-flight gauges for
// every route.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}

// Package metrics — счетчики Prometheus движка и HTTP-слоя.
package metrics

import (
	"reflect"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	busEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "configurator_bus_events_total",
		Help: "Events delivered by change buses, by event type",
	}, []string{"event"})

	nodesRevived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "configurator_nodes_revived_total",
		Help: "Nodes created from configuration JSON, by entity",
	}, []string{"entity"})

	migrationsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "configurator_migrations_applied_total",
		Help: "Migration steps applied, by resulting version",
	}, []string{"version"})

	migrationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "configurator_migration_failures_total",
		Help: "Configuration imports rejected by the migrator",
	})

	differencesFound = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "configurator_differences_per_comparison",
		Help:    "Number of differences found per comparison",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "configurator_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "configurator_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// BusEvent подходит как хук доставки шины: считает события по их Go-типу.
func BusEvent(ev any) {
	busEvents.WithLabelValues(eventName(ev)).Inc()
}

func eventName(ev any) string {
	t := reflect.TypeOf(ev)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func NodeRevived(entity string) {
	nodesRevived.WithLabelValues(entity).Inc()
}

func MigrationApplied(version int) {
	migrationsApplied.WithLabelValues(strconv.Itoa(version)).Inc()
}

func MigrationFailed() {
	migrationFailures.Inc()
}

func DifferencesFound(n int) {
	differencesFound.Observe(float64(n))
}

// Middleware считает запросы по шаблону маршрута, а не по фактическому пути.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler отдает метрики для /metrics.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

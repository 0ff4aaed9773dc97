package eventbus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics receives bus lifecycle signals. Implementations must be safe for
// concurrent use.
type Metrics interface {
	EventPublished(routingKey string)
	PublishFailed(routingKey string)
	EventHandled(routingKey string, took time.Duration)
	HandlerFailed(routingKey string)
	EventRetried(routingKey string)
	EventDeadLettered(routingKey string)
	Reconnected()
}

type NoopMetrics struct{}

func (NoopMetrics) EventPublished(string)              {}
func (NoopMetrics) PublishFailed(string)               {}
func (NoopMetrics) EventHandled(string, time.Duration) {}
func (NoopMetrics) HandlerFailed(string)               {}
func (NoopMetrics) EventRetried(string)                {}
func (NoopMetrics) EventDeadLettered(string)           {}
func (NoopMetrics) Reconnected()                       {}

type PrometheusMetrics struct {
	published      *prometheus.CounterVec
	publishFailed  *prometheus.CounterVec
	handled        *prometheus.CounterVec
	handleDuration *prometheus.HistogramVec
	handlerFailed  *prometheus.CounterVec
	retried        *prometheus.CounterVec
	deadLettered   *prometheus.CounterVec
	reconnects     prometheus.Counter
}

func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	labels := []string{"routing_key"}

	return &PrometheusMetrics{
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_events_published_total",
			Help: "The total number of events published to the exchange",
		}, labels),
		publishFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_publish_failures_total",
			Help: "The total number of events dropped because publishing failed",
		}, labels),
		handled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_events_handled_total",
			Help: "The total number of events acknowledged after a successful handler run",
		}, labels),
		handleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventbus_handler_duration_seconds",
			Help:    "Time taken by a successful handler run",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		}, labels),
		handlerFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_handler_failures_total",
			Help: "The total number of failed handler runs",
		}, labels),
		retried: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_events_retried_total",
			Help: "The total number of events scheduled for another delivery",
		}, labels),
		deadLettered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_events_dead_lettered_total",
			Help: "The total number of events handed to the dead-letter sink",
		}, labels),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventbus_reconnects_total",
			Help: "The total number of successful broker reconnects",
		}),
	}
}

func (m *PrometheusMetrics) EventPublished(routingKey string) {
	m.published.WithLabelValues(routingKey).Inc()
}

func (m *PrometheusMetrics) PublishFailed(routingKey string) {
	m.publishFailed.WithLabelValues(routingKey).Inc()
}

func (m *PrometheusMetrics) EventHandled(routingKey string, took time.Duration) {
	m.handled.WithLabelValues(routingKey).Inc()
	m.handleDuration.WithLabelValues(routingKey).Observe(took.Seconds())
}

func (m *PrometheusMetrics) HandlerFailed(routingKey string) {
	m.handlerFailed.WithLabelValues(routingKey).Inc()
}

func (m *PrometheusMetrics) EventRetried(routingKey string) {
	m.retried.WithLabelValues(routingKey).Inc()
}

func (m *PrometheusMetrics) EventDeadLettered(routingKey string) {
	m.deadLettered.WithLabelValues(routingKey).Inc()
}

func (m *PrometheusMetrics) Reconnected() {
	m.reconnects.Inc()
}

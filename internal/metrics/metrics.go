package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OnlineConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dm_online_connections",
		Help: "Current open websocket connections.",
	})

	EventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dm_events_published_total",
		Help: "Total message-created events handed to the broker.",
	})
	PublishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dm_publish_failures_total",
		Help: "Total publishes that failed and were dropped at this layer.",
	})

	EventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dm_events_consumed_total",
		Help: "Total deliveries received from the broker.",
	})
	MessagesPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dm_messages_persisted_total",
		Help: "Total messages written to storage.",
	})
	DuplicateEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dm_duplicate_events_total",
		Help: "Total redelivered events skipped by the idempotent write path.",
	})
	PoisonEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dm_poison_events_total",
		Help: "Total undecodable deliveries acked and dropped.",
	})
	EventsRequeued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dm_events_requeued_total",
		Help: "Total deliveries nacked back to the queue after a persistence failure.",
	})
)

func Register() {
	prometheus.MustRegister(
		OnlineConnections,
		EventsPublished, PublishFailures,
		EventsConsumed, MessagesPersisted, DuplicateEvents, PoisonEvents, EventsRequeued,
	)
}

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics holds the prometheus collectors shared by the services and
// the tracker library.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopdemo"

// Rejection reasons for EventsRejected.
const (
	ReasonInvalid = "invalid"
	ReasonStore   = "store"
)

// Tracker message outcomes for TrackerMessages.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analytics",
		Name:      "events_ingested_total",
		Help:      "Analytics events appended to the columnar store, by event type.",
	}, []string{"type"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analytics",
		Name:      "events_rejected_total",
		Help:      "Analytics events that were not stored, by event type and reason.",
	}, []string{"type", "reason"})

	TrackerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "messages_total",
		Help:      "Outbound tracker messages, by kind and outcome.",
	}, []string{"kind", "outcome"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

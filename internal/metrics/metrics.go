// Package metrics holds the Prometheus collectors of the event bus.
//
// Collectors are usable without registration; Register exposes them on a
// registry, typically once at server start.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registrations counts register calls emitted into observer markup.
	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hxbus_registrations_encoded_total",
			Help: "Total number of observer registration calls encoded",
		},
		[]string{"group"},
	)

	// ResolutionFailures counts references that did not resolve during render.
	ResolutionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hxbus_resolution_failures_total",
			Help: "Total number of unresolvable element references",
		},
	)

	// ActionsQueued counts action events queued by inbound round trips.
	ActionsQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hxbus_actions_queued_total",
			Help: "Total number of observer action events queued",
		},
		[]string{"phase"},
	)

	// PushMessages counts server push messages by backend and direction.
	PushMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hxbus_push_messages_total",
			Help: "Total number of server push messages",
		},
		[]string{"backend", "direction"},
	)
)

// Register adds every collector to r. Collectors already registered
// on r are not an error.
func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{Registrations, ResolutionFailures, ActionsQueued, PushMessages} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler serves the collectors registered on the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

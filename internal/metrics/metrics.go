package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PlaceMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "places", Name: "mutations_total", Help: "Place mutations by operation and outcome."},
		[]string{"op", "outcome"},
	)
	GeocodeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "places", Name: "geocode_requests_total", Help: "Address resolutions by source and outcome."},
		[]string{"source", "outcome"},
	)
	ImageCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "places", Name: "image_cleanup_failures_total", Help: "Stored images that could not be deleted."},
	)
	WSEventsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "places", Name: "ws_events_sent_total", Help: "Live feed events delivered by type."},
		[]string{"type"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(PlaceMutations)
	reg.MustRegister(GeocodeRequests)
	reg.MustRegister(ImageCleanupFailures)
	reg.MustRegister(WSEventsSent)
}

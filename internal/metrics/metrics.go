package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CaptureFrames counts extracted frames by result (ok, failed)
	CaptureFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_capture_frames_total",
		Help: "Total number of frame extractions by result",
	}, []string{"result"})

	// CaptureDuration observes wall time of capture calls by kind (cover, batch)
	CaptureDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_capture_duration_seconds",
		Help:    "Duration of capture calls",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"kind"})

	// CacheRequests counts read cache lookups by result (hit, miss) and failed loads (error)
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_cache_requests_total",
		Help: "Total number of read cache lookups by result",
	}, []string{"result"})

	// ProxyRequests counts playback proxy upstream requests by kind and result
	ProxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_hlsproxy_requests_total",
		Help: "Total number of playback proxy upstream requests",
	}, []string{"kind", "result"})
)

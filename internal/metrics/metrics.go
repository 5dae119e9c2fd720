// Package metrics defines the proxy's Prometheus series and the helpers
// that register them, following the vector-metric-plus-Register pattern
// used across the fleet.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// BuildInfo exposes version/commit/date as labels on a constant gauge.
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relaymcp_build_info",
			Help: "Build information",
		},
		[]string{"version", "sha", "date"},
	)

	// ActiveSessions counts live sessions by frontend and upstream transport.
	ActiveSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relaymcp_active_sessions",
			Help: "Currently active sessions by transport pairing",
		},
		[]string{"frontend_transport", "upstream_transport"},
	)

	// FramesForwarded counts frames successfully routed across the bridge.
	FramesForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaymcp_frames_forwarded_total",
			Help: "JSON-RPC frames forwarded across the bridge",
		},
		[]string{"direction"},
	)

	// DecodeErrors counts frames dropped for being malformed or ambiguous.
	DecodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relaymcp_decode_errors_total",
			Help: "Frames dropped for being malformed or not a valid request/notification/response",
		},
	)

	// UpstreamConnectFailures counts failed upstream.connect attempts.
	UpstreamConnectFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relaymcp_upstream_connect_failures_total",
			Help: "Failed attempts to connect to the upstream MCP server",
		},
	)

	// UpstreamConnectSeconds observes upstream connect latency.
	UpstreamConnectSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relaymcp_upstream_connect_seconds",
			Help:    "Latency of successful upstream.connect calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers every series above with r. Call once at startup.
func Register(r prometheus.Registerer) {
	r.MustRegister(BuildInfo, ActiveSessions, FramesForwarded, DecodeErrors, UpstreamConnectFailures, UpstreamConnectSeconds)
}

// SetBuildInfo sets the build info gauge to 1 for the given labels.
func SetBuildInfo(version, sha, date string) {
	BuildInfo.WithLabelValues(version, sha, date).Set(1)
}

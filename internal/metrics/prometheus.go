package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the intercom.
// Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Transmit stream metrics
	FramesCaptured prometheus.Counter
	FramesSent     prometheus.Counter
	SendErrors     prometheus.Counter

	// Receive stream metrics
	FramesReceived prometheus.Counter
	FramesPlayed   prometheus.Counter
	PlaybackErrors prometheus.Counter
	FrameRMS       prometheus.Histogram

	// Peer liveness metrics
	PeerLocks     prometheus.Counter
	PeerTimeouts  prometheus.Counter
	PartnerLocked prometheus.Gauge

	// Echo suppression metrics
	SuppressionMutes  prometheus.Counter
	CaptureSuppressed prometheus.Gauge

	// Alert tone metrics
	ToneStarts prometheus.Counter
	ToneActive prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Transmit stream metrics
		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_frames_captured_total",
			Help: "Total number of non-empty frames read from the capture device",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_frames_sent_total",
			Help: "Total number of frames sent to the partner",
		}),
		SendErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_send_errors_total",
			Help: "Total number of frames that failed to send",
		}),

		// Receive stream metrics
		FramesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_frames_received_total",
			Help: "Total number of frames received from the network",
		}),
		FramesPlayed: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_frames_played_total",
			Help: "Total number of received frames handed to playback",
		}),
		PlaybackErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_playback_errors_total",
			Help: "Total number of failed playback writes",
		}),
		FrameRMS: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "intercom_frame_rms",
			Help:    "RMS energy of received frames on the 16-bit scale",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10), // 64 to 32768
		}),

		// Peer liveness metrics
		PeerLocks: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_peer_locks_total",
			Help: "Total number of times a sender was locked as partner",
		}),
		PeerTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_peer_timeouts_total",
			Help: "Total number of partner locks released by timeout",
		}),
		PartnerLocked: f.NewGauge(prometheus.GaugeOpts{
			Name: "intercom_partner_locked",
			Help: "1 while a partner is locked",
		}),

		// Echo suppression metrics
		SuppressionMutes: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_suppression_mutes_total",
			Help: "Total number of times echo suppression muted capture",
		}),
		CaptureSuppressed: f.NewGauge(prometheus.GaugeOpts{
			Name: "intercom_capture_suppressed",
			Help: "1 while echo suppression mutes capture",
		}),

		// Alert tone metrics
		ToneStarts: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_tone_starts_total",
			Help: "Total number of alert tone runs started",
		}),
		ToneActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "intercom_tone_active",
			Help: "1 while the alert tone is playing",
		}),

		// HTTP API metrics
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intercom_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intercom_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intercom_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RecordFrameCaptured increments the captured frames counter
func (m *Metrics) RecordFrameCaptured() {
	if m == nil {
		return
	}
	m.FramesCaptured.Inc()
}

// RecordFrameSent records the outcome of one send
func (m *Metrics) RecordFrameSent(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SendErrors.Inc()
		return
	}
	m.FramesSent.Inc()
}

// RecordFrameReceived records a received frame and its energy
func (m *Metrics) RecordFrameReceived(rms int) {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
	m.FrameRMS.Observe(float64(rms))
}

// RecordFramePlayed records the outcome of one playback write
func (m *Metrics) RecordFramePlayed(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PlaybackErrors.Inc()
		return
	}
	m.FramesPlayed.Inc()
}

// RecordPeerLocked records a new partner lock
func (m *Metrics) RecordPeerLocked() {
	if m == nil {
		return
	}
	m.PeerLocks.Inc()
	m.PartnerLocked.Set(1)
}

// RecordPeerTimeout records a lock released by timeout
func (m *Metrics) RecordPeerTimeout() {
	if m == nil {
		return
	}
	m.PeerTimeouts.Inc()
	m.PartnerLocked.Set(0)
}

// SetCaptureSuppressed records a suppression state change
func (m *Metrics) SetCaptureSuppressed(muted bool) {
	if m == nil {
		return
	}
	if muted {
		m.SuppressionMutes.Inc()
	}
	m.CaptureSuppressed.Set(boolGauge(muted))
}

// SetToneActive records the alert tone starting or stopping
func (m *Metrics) SetToneActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.ToneStarts.Inc()
	}
	m.ToneActive.Set(boolGauge(active))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

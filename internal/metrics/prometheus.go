package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the speech regulator
type Metrics struct {
	// Detection cycle metrics
	CyclesStarted prometheus.Counter
	CyclesSkipped prometheus.Counter
	CycleDuration prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	TranscriptionRetries   prometheus.Counter

	// Classification metrics
	Classifications *prometheus.CounterVec
	Detections      prometheus.Counter
	TopScore        prometheus.Histogram

	// Alert metrics
	AlertWriteFailures prometheus.Counter

	// Relay metrics
	RelayConnections       prometheus.Counter
	RelayActiveConnections prometheus.Gauge
	RelayFrameErrors       prometheus.Counter
	RelayVerdicts          *prometheus.CounterVec
	RelayChunkSize         prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Detection cycle metrics
		CyclesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regulator_cycles_started_total",
			Help: "Total number of detection cycles started",
		}),
		CyclesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regulator_cycles_skipped_total",
			Help: "Total number of poll ticks skipped because a cycle was in flight",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "regulator_cycle_duration_seconds",
			Help:    "Duration of complete detection cycles",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regulator_transcription_requests_total",
			Help: "Total number of transcription attempts",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regulator_transcription_successes_total",
			Help: "Total number of transcriptions that produced text",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regulator_transcription_failures_total",
			Help: "Total number of transcription attempts that produced no text",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "regulator_transcription_duration_seconds",
			Help:    "Duration of transcription attempts",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		TranscriptionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regulator_transcription_retries_total",
			Help: "Total number of remote transcription request retries",
		}),

		// Classification metrics
		Classifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regulator_classifications_total",
			Help: "Total number of classification calls by classifier mode",
		}, []string{"mode"}),
		Detections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regulator_detections_total",
			Help: "Total number of utterances flagged as toxic",
		}),
		TopScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "regulator_top_score",
			Help:    "Highest label score per classified utterance",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		// Alert metrics
		AlertWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regulator_alert_write_failures_total",
			Help: "Total number of audit log write failures",
		}),

		// Relay metrics
		RelayConnections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regulator_relay_connections_total",
			Help: "Total number of relay connections accepted",
		}),
		RelayActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "regulator_relay_active_connections",
			Help: "Current number of open relay connections",
		}),
		RelayFrameErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regulator_relay_frame_errors_total",
			Help: "Total number of malformed or truncated relay frames",
		}),
		RelayVerdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regulator_relay_verdicts_total",
			Help: "Total number of relay verdicts sent by outcome",
		}, []string{"verdict"}),
		RelayChunkSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "regulator_relay_chunk_size_bytes",
			Help:    "Size of received relay audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regulator_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regulator_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regulator_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordCycleStarted increments the cycles started counter
func (m *Metrics) RecordCycleStarted() {
	m.CyclesStarted.Inc()
}

// RecordCycleSkipped increments the skipped ticks counter
func (m *Metrics) RecordCycleSkipped() {
	m.CyclesSkipped.Inc()
}

// RecordCycleComplete records the duration of a finished cycle
func (m *Metrics) RecordCycleComplete(durationSeconds float64) {
	m.CycleDuration.Observe(durationSeconds)
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a transcription that produced text
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a transcription that produced no text
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	m.TranscriptionRetries.Inc()
}

// RecordClassification records a classification call and its highest score
func (m *Metrics) RecordClassification(mode string, topScore float64) {
	m.Classifications.WithLabelValues(mode).Inc()
	m.TopScore.Observe(topScore)
}

// RecordDetection increments the detections counter
func (m *Metrics) RecordDetection() {
	m.Detections.Inc()
}

// RecordAlertWriteFailure increments the audit write failures counter
func (m *Metrics) RecordAlertWriteFailure() {
	m.AlertWriteFailures.Inc()
}

// RecordRelayConnectionOpened records an accepted relay connection
func (m *Metrics) RecordRelayConnectionOpened() {
	m.RelayConnections.Inc()
	m.RelayActiveConnections.Inc()
}

// RecordRelayConnectionClosed decrements the active connections gauge
func (m *Metrics) RecordRelayConnectionClosed() {
	m.RelayActiveConnections.Dec()
}

// RecordRelayFrameError increments the malformed frame counter
func (m *Metrics) RecordRelayFrameError() {
	m.RelayFrameErrors.Inc()
}

// RecordRelayVerdict records a verdict sent to a sensor
func (m *Metrics) RecordRelayVerdict(flagged bool, chunkSizeBytes int) {
	verdict := "clean"
	if flagged {
		verdict = "flagged"
	}
	m.RelayVerdicts.WithLabelValues(verdict).Inc()
	m.RelayChunkSize.Observe(float64(chunkSizeBytes))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

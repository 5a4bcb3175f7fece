package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectionMetrics tracks logged events, live polling and batch work.
type DetectionMetrics struct {
	eventsTotal      *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	pollDuration     *prometheus.HistogramVec
	pollDetections   prometheus.Histogram
	qualifyingFrames prometheus.Counter
	batchVideos      *prometheus.CounterVec
}

// NewDetectionMetrics creates and registers the detection collectors.
func NewDetectionMetrics(registry *prometheus.Registry) (*DetectionMetrics, error) {
	m := &DetectionMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detection metrics: %w", err)
	}
	return m, nil
}

func (m *DetectionMetrics) initMetrics() {
	m.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallwatch_events_total",
			Help: "Total number of detection events written to the event log",
		},
		[]string{"type", "source"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallwatch_errors_total",
			Help: "Total number of errors by component, category and priority",
		},
		[]string{"component", "category", "priority"},
	)

	m.pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fallwatch_live_poll_duration_seconds",
			Help:    "Time taken to read, detect and annotate one live frame",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"status"},
	)

	m.pollDetections = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fallwatch_live_frame_detections",
		Help:    "Number of detections per live frame",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})

	m.qualifyingFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fallwatch_live_qualifying_frames_total",
		Help: "Total number of live frames that triggered fall logging",
	})

	m.batchVideos = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallwatch_batch_videos_total",
			Help: "Total number of uploaded videos processed",
		},
		[]string{"status"},
	)
}

func (m *DetectionMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.eventsTotal,
		m.errorsTotal,
		m.pollDuration,
		m.pollDetections,
		m.qualifyingFrames,
		m.batchVideos,
	}
}

// Describe implements prometheus.Collector.
func (m *DetectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *DetectionMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordEvent counts a logged event.
func (m *DetectionMetrics) RecordEvent(detectionType, source string) {
	m.eventsTotal.WithLabelValues(detectionType, source).Inc()
}

// RecordError counts a built error.
func (m *DetectionMetrics) RecordError(component, category, priority string) {
	m.errorsTotal.WithLabelValues(component, category, priority).Inc()
}

// RecordPoll records one live poll.
func (m *DetectionMetrics) RecordPoll(seconds float64, detections int, qualifying bool, err error) {
	if err != nil {
		m.pollDuration.WithLabelValues(StatusError).Observe(seconds)
		return
	}
	m.pollDuration.WithLabelValues(StatusSuccess).Observe(seconds)
	m.pollDetections.Observe(float64(detections))
	if qualifying {
		m.qualifyingFrames.Inc()
	}
}

// RecordBatch counts a processed upload.
func (m *DetectionMetrics) RecordBatch(status string) {
	m.batchVideos.WithLabelValues(status).Inc()
}

// ErrorsCounter exposes the error counter for tests and custom exporters.
func (m *DetectionMetrics) ErrorsCounter() *prometheus.CounterVec {
	return m.errorsTotal
}

// Package observability wires Prometheus metrics into the event log, the
// error builder, the live capture manager and the HTTP API.
package observability

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/fallwatch/internal/capture"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/eventlog"
	"github.com/tphakala/fallwatch/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Detection *metrics.DetectionMetrics
	HTTP      *metrics.HTTPMetrics
}

// NewMetrics creates a registry with process, Go runtime and FallWatch
// collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	detection, err := metrics.NewDetectionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create detection metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Detection: detection,
		HTTP:      httpMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// ErrorHook counts every built error. Register it with errors.AddErrorHook.
func (m *Metrics) ErrorHook(ee *errors.EnhancedError) {
	m.Detection.RecordError(ee.GetComponent(), ee.GetCategory(), ee.GetPriority())
}

// EventLogged implements eventlog.Listener.
func (m *Metrics) EventLogged(event eventlog.Event) {
	m.Detection.RecordEvent(event.DetectionType, event.CameraSource)
}

// ObservePoll is a capture.PollObserver.
func (m *Metrics) ObservePoll(elapsed time.Duration, frame *capture.Frame, err error) {
	detections, qualifying := 0, false
	if frame != nil {
		detections = len(frame.Detections)
		qualifying = frame.Qualifying
	}
	m.Detection.RecordPoll(elapsed.Seconds(), detections, qualifying, err)
}

// RecordBatch counts a processed upload by outcome.
func (m *Metrics) RecordBatch(err error) {
	if err != nil {
		m.Detection.RecordBatch(metrics.StatusError)
		return
	}
	m.Detection.RecordBatch(metrics.StatusSuccess)
}

// Compile-time check that Metrics can be registered as a listener.
var _ eventlog.Listener = (*Metrics)(nil)

// Compile-time check that ObservePoll matches the capture observer.
var _ capture.PollObserver = (*Metrics)(nil).ObservePoll

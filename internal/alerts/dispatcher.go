// Package alerts delivers notifications for live fall events logged to the
// event log. Delivery runs on a single worker goroutine, rate limited so a
// burst of falls produces one alert per interval.
package alerts

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/fallwatch/internal/eventlog"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/logger"
	"github.com/tphakala/fallwatch/internal/settings"
)

const (
	// DefaultQueueSize bounds pending alerts. Events beyond it are dropped.
	DefaultQueueSize = 16
	sendTimeout      = 30 * time.Second
)

// SettingsReader provides the runtime settings used to compose alerts.
type SettingsReader interface {
	Snapshot(ctx context.Context) settings.Config
}

// Alert is a fall event together with the settings in effect when it was
// dispatched.
type Alert struct {
	Event  eventlog.Event
	Config settings.Config
}

// Title returns a short alert title.
func (a Alert) Title() string {
	name := a.Config.OrganizationName
	if name == "" {
		name = "FallWatch"
	}
	return name + ": fall detected"
}

// Location returns the camera location, falling back to the system location.
func (a Alert) Location() string {
	if a.Config.CameraLocation != "" {
		return a.Config.CameraLocation
	}
	return a.Config.SystemLocation
}

// Sink delivers an alert to one destination.
type Sink interface {
	Name() string
	// Enabled reports whether the sink delivers anything under cfg.
	Enabled(cfg settings.Config) bool
	Send(ctx context.Context, alert Alert) error
}

// Dispatcher receives logged events and forwards live falls to its sinks.
type Dispatcher struct {
	settings SettingsReader
	sinks    []Sink
	limiter  *rate.Limiter
	queue    chan eventlog.Event

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSink adds a delivery sink.
func WithSink(sink Sink) Option {
	return func(d *Dispatcher) {
		if sink != nil {
			d.sinks = append(d.sinks, sink)
		}
	}
}

// WithQueueSize sets the pending alert capacity.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan eventlog.Event, n)
		}
	}
}

// NewDispatcher creates a dispatcher that sends at most one alert per
// minInterval. A zero interval disables rate limiting.
func NewDispatcher(reader SettingsReader, minInterval time.Duration, opts ...Option) *Dispatcher {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	d := &Dispatcher{
		settings: reader,
		limiter:  rate.NewLimiter(limit, 1),
		queue:    make(chan eventlog.Event, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sinks returns the number of configured sinks.
func (d *Dispatcher) Sinks() int {
	return len(d.sinks)
}

// EventLogged implements eventlog.Listener. It never blocks the caller.
func (d *Dispatcher) EventLogged(event eventlog.Event) {
	if !Qualifies(event) || len(d.sinks) == 0 {
		return
	}
	select {
	case d.queue <- event:
	default:
		GetLogger().Warn("alert queue full, dropping event",
			logger.Uint64("event_id", uint64(event.ID)))
	}
}

// Qualifies reports whether an event should raise an alert: a fall seen on
// the live camera.
func Qualifies(event eventlog.Event) bool {
	return strings.EqualFold(event.CameraSource, eventlog.SourceLive) &&
		inference.IsFall(event.DetectionType)
}

// Start launches the delivery worker. It stops when ctx is cancelled or Stop
// is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go d.run(ctx)

	GetLogger().Info("alert dispatcher started", logger.Int("sinks", len(d.sinks)))
}

// Stop halts the worker and waits for it to exit. Pending alerts are
// discarded.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.dispatch(ctx, event)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event eventlog.Event) {
	alert := Alert{Event: event, Config: d.settings.Snapshot(ctx)}

	// Only enabled sinks spend the rate limit.
	active := make([]Sink, 0, len(d.sinks))
	for _, sink := range d.sinks {
		if sink.Enabled(alert.Config) {
			active = append(active, sink)
		}
	}
	if len(active) == 0 {
		GetLogger().Debug("no alert sink enabled",
			logger.Uint64("event_id", uint64(event.ID)))
		return
	}

	if !d.limiter.Allow() {
		GetLogger().Debug("alert suppressed by rate limit",
			logger.Uint64("event_id", uint64(event.ID)))
		return
	}

	for _, sink := range active {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := sink.Send(sendCtx, alert)
		cancel()
		if err != nil {
			GetLogger().Error("alert delivery failed",
				logger.String("sink", sink.Name()),
				logger.Uint64("event_id", uint64(event.ID)),
				logger.Error(err))
			continue
		}
		GetLogger().Info("alert delivered",
			logger.String("sink", sink.Name()),
			logger.Uint64("event_id", uint64(event.ID)))
	}
}

// Package eventlog is the durable log of detection events. It owns event
// timestamps and ids, and tells registered listeners about every event it
// stores.
package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/fallwatch/internal/datastore"
	"github.com/tphakala/fallwatch/internal/datastore/repository"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/logger"
)

// Provenance values for Event.CameraSource.
const (
	SourceLive   = "live"
	SourceUpload = "upload"
	SourceManual = "manual"
)

const (
	// DefaultListLimit applies when List is called with a non-positive limit.
	DefaultListLimit = 100
	fallType         = "fall"
	recentWindow     = 24 * time.Hour
)

// Event is a single logged detection.
type Event = datastore.DetectionEvent

// Stats summarizes the log.
type Stats struct {
	TotalDetections int64            `json:"total_detections"`
	TotalFalls      int64            `json:"total_falls"`
	ByType          map[string]int64 `json:"by_type"`
	Recent24h       int64            `json:"recent_24h"`
}

// Listener is notified after an event has been stored. Implementations must
// return quickly; slow work belongs on their own goroutine.
type Listener interface {
	EventLogged(event Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(event Event)

// EventLogged calls f(event).
func (f ListenerFunc) EventLogged(event Event) { f(event) }

// Log appends and queries detection events.
type Log struct {
	repo repository.EventRepository
	now  func() time.Time

	mu        sync.RWMutex
	listeners []Listener
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates a Log backed by repo.
func New(repo repository.EventRepository, opts ...Option) *Log {
	l := &Log{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddListener registers a listener for stored events.
func (l *Log) AddListener(listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, listener)
}

// Append stores event and returns its id. Any caller supplied id or
// timestamp is replaced.
func (l *Log) Append(ctx context.Context, event Event) (uint, error) {
	if event.DetectionType == "" {
		return 0, errors.Newf("detection type is required").
			Component("eventlog").
			Category(errors.CategoryValidation).
			Build()
	}
	if event.Confidence < 0 || event.Confidence > 1 {
		return 0, errors.Newf("confidence %v outside [0, 1]", event.Confidence).
			Component("eventlog").
			Category(errors.CategoryValidation).
			Context("confidence", event.Confidence).
			Build()
	}

	event.ID = 0
	event.Timestamp = l.now().UTC()

	if err := l.repo.Create(ctx, &event); err != nil {
		return 0, errors.New(err).
			Component("eventlog").
			Category(errors.CategoryDatabase).
			Context("operation", "append").
			Context("detection_type", event.DetectionType).
			Build()
	}

	GetLogger().Info("detection logged",
		logger.Uint64("id", uint64(event.ID)),
		logger.String("type", event.DetectionType),
		logger.Float64("confidence", event.Confidence),
		logger.String("source", event.CameraSource))

	l.notify(event)
	return event.ID, nil
}

func (l *Log) notify(event Event) {
	l.mu.RLock()
	listeners := make([]Listener, len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.RUnlock()

	// Listeners never see the snapshot payload.
	event.ImageData = ""
	for _, listener := range listeners {
		listener.EventLogged(event)
	}
}

// List returns up to limit events, most recent first.
func (l *Log) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	events, err := l.repo.List(ctx, limit)
	if err != nil {
		return nil, errors.New(err).
			Component("eventlog").
			Category(errors.CategoryDatabase).
			Context("operation", "list").
			Build()
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// Stats computes totals, per type counts and the last 24 hours count. The
// window is evaluated at call time.
func (l *Log) Stats(ctx context.Context) (Stats, error) {
	wrap := func(err error, op string) error {
		return errors.New(err).
			Component("eventlog").
			Category(errors.CategoryDatabase).
			Context("operation", op).
			Build()
	}

	total, err := l.repo.Count(ctx)
	if err != nil {
		return Stats{}, wrap(err, "count")
	}
	falls, err := l.repo.CountTypeFold(ctx, fallType)
	if err != nil {
		return Stats{}, wrap(err, "count_falls")
	}
	byType, err := l.repo.CountByType(ctx)
	if err != nil {
		return Stats{}, wrap(err, "count_by_type")
	}
	recent, err := l.repo.CountSince(ctx, l.now().Add(-recentWindow))
	if err != nil {
		return Stats{}, wrap(err, "count_recent")
	}

	return Stats{
		TotalDetections: total,
		TotalFalls:      falls,
		ByType:          byType,
		Recent24h:       recent,
	}, nil
}

// DeleteAll removes every event and returns how many were removed.
func (l *Log) DeleteAll(ctx context.Context) (int64, error) {
	deleted, err := l.repo.DeleteAll(ctx)
	if err != nil {
		return 0, errors.New(err).
			Component("eventlog").
			Category(errors.CategoryDatabase).
			Context("operation", "delete_all").
			Build()
	}
	GetLogger().Warn("detection log cleared", logger.Int64("deleted", deleted))
	return deleted, nil
}

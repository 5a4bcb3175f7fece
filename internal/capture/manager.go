package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/tphakala/fallwatch/internal/eventlog"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/logger"
	"github.com/tphakala/fallwatch/internal/settings"
)

// Status values reported by Start and Stop.
const (
	StatusSuccess        = "success"
	StatusError          = "error"
	StatusAlreadyRunning = "already_running"
	StatusStopped        = "stopped"
	StatusNotRunning     = "not_running"
)

// StartResult reports the outcome of Manager.Start.
type StartResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StopResult reports the outcome of Manager.Stop.
type StopResult struct {
	Status string `json:"status"`
}

// EventAppender stores logged fall events.
type EventAppender interface {
	Append(ctx context.Context, event eventlog.Event) (uint, error)
}

// SourceFactory builds a frame source for the current settings.
type SourceFactory func(cfg settings.Config) FrameSource

// PollObserver is called after every poll with its duration and outcome.
type PollObserver func(elapsed time.Duration, frame *Frame, err error)

// Manager owns at most one live session, serializes frame polls and logs
// qualifying fall events.
type Manager struct {
	detector  inference.Detector
	settings  SettingsReader
	events    EventAppender
	newSource SourceFactory
	observe   PollObserver
	sessOpts  []SessionOption

	lifecycle sync.Mutex // serializes Start and Stop
	pollMu    sync.Mutex // one in-flight poll

	mu      sync.RWMutex
	session *Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPollObserver registers a callback run after every poll.
func WithPollObserver(fn PollObserver) ManagerOption {
	return func(m *Manager) { m.observe = fn }
}

// WithSessionOptions passes options to every session the manager creates.
func WithSessionOptions(opts ...SessionOption) ManagerOption {
	return func(m *Manager) { m.sessOpts = append(m.sessOpts, opts...) }
}

// NewManager creates a Manager. newSource is called on every Start so
// camera settings changes apply to the next session.
func NewManager(det inference.Detector, reader SettingsReader, events EventAppender, newSource SourceFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		detector:  det,
		settings:  reader,
		events:    events,
		newSource: newSource,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FFmpegSourceFactory returns a SourceFactory that opens the configured
// camera URL through ffmpeg.
func FFmpegSourceFactory(ffmpegPath, transport string, frameRate int) SourceFactory {
	return func(cfg settings.Config) FrameSource {
		return NewFFmpegSource(cfg.StreamURL(), ffmpegPath,
			WithTransport(transport),
			WithFrameRate(frameRate))
	}
}

// Start connects a new session unless one is already running.
func (m *Manager) Start(ctx context.Context) StartResult {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.Running() {
		return StartResult{Status: StatusAlreadyRunning}
	}

	cfg := m.settings.Snapshot(ctx)
	session := NewSession(m.newSource(cfg), m.detector, m.settings, m.sessOpts...)
	if err := session.Connect(ctx); err != nil {
		_ = session.Stop()
		GetLogger().Error("live detection failed to start",
			logger.String("url", cfg.RedactedStreamURL()),
			logger.Error(err))
		return StartResult{Status: StatusError, Message: "Failed to connect to camera"}
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	GetLogger().Info("live detection started", logger.String("url", cfg.RedactedStreamURL()))
	return StartResult{Status: StatusSuccess, Message: "Live detection started"}
}

// Stop stops the running session. It may run while a poll is in flight.
func (m *Manager) Stop() StopResult {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	session := m.session
	m.session = nil
	m.mu.Unlock()

	if session == nil {
		return StopResult{Status: StatusNotRunning}
	}
	if err := session.Stop(); err != nil {
		GetLogger().Warn("error releasing camera", logger.Error(err))
	}
	GetLogger().Info("live detection stopped")
	return StopResult{Status: StatusStopped}
}

// Running reports whether a session is connected.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil && m.session.Running()
}

// CooldownActive reports whether the running session is inside its
// cooldown window.
func (m *Manager) CooldownActive() bool {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()
	return session != nil && session.IsCooldownActive()
}

// Poll reads one annotated frame from the running session. A qualifying
// frame appends exactly one event for its highest confidence fall.
func (m *Manager) Poll(ctx context.Context) (frame *Frame, err error) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	if m.observe != nil {
		start := time.Now()
		defer func() { m.observe(time.Since(start), frame, err) }()
	}

	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()
	if session == nil {
		return nil, ErrNotRunning
	}

	frame, err = session.ReadAndAnnotateFrame(ctx)
	if err != nil {
		return nil, err
	}

	if frame.Qualifying {
		m.logFall(ctx, frame)
	}
	return frame, nil
}

// logFall appends the frame's fall detection. Failures are logged and do
// not fail the poll.
func (m *Manager) logFall(ctx context.Context, frame *Frame) {
	fall := frame.Fall
	id, err := m.events.Append(ctx, eventlog.Event{
		DetectionType: "fall",
		Confidence:    fall.Confidence,
		CameraSource:  eventlog.SourceLive,
		ImageData:     base64.StdEncoding.EncodeToString(frame.JPEG),
		Notes:         BoundingBoxNote(fall.BBox),
	})
	if err != nil {
		GetLogger().Error("failed to log live fall", logger.Error(err))
		return
	}
	GetLogger().Info("live fall logged",
		logger.Uint64("event_id", uint64(id)),
		logger.Float64("confidence", fall.Confidence))
}

// BoundingBoxNote formats the event note for a live detection.
func BoundingBoxNote(b [4]float64) string {
	return fmt.Sprintf("Bounding box: [%.1f, %.1f, %.1f, %.1f]", b[0], b[1], b[2], b[3])
}

// Close stops any running session.
func (m *Manager) Close() error {
	m.Stop()
	return nil
}

// Package capture runs the live camera detection loop: it pulls frames from
// a FrameSource, runs the detector, draws annotations and decides which
// fall detections are logged.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/tphakala/fallwatch/internal/annotate"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/logger"
	"github.com/tphakala/fallwatch/internal/settings"
)

// Live frames are resized to this size before detection.
const (
	FrameWidth  = 640
	FrameHeight = 360
)

var (
	// ErrNotRunning is returned when a frame is requested from a session
	// that is not connected.
	ErrNotRunning = errors.NewStd("live detection not running")
	// ErrFrameUnavailable is returned when the source produced no frame.
	ErrFrameUnavailable = errors.NewStd("failed to read frame")
)

// State is the session lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SettingsReader returns the current runtime settings. It is consulted on
// every frame.
type SettingsReader interface {
	Snapshot(ctx context.Context) settings.Config
}

// Frame is one annotated live frame.
type Frame struct {
	JPEG       []byte
	Detections []inference.Detection
	Timestamp  time.Time
	// Qualifying is true when the frame holds a fall detection outside the
	// cooldown window and should be logged.
	Qualifying bool
	// Fall is the highest confidence fall detection when Qualifying is set.
	Fall inference.Detection
}

// Session owns one camera connection and its cooldown state. Callers must
// not issue overlapping ReadAndAnnotateFrame calls; Stop may be called at
// any time.
type Session struct {
	source   FrameSource
	detector inference.Detector
	settings SettingsReader
	now      func() time.Time

	mu       sync.Mutex
	state    State
	cooldown CooldownState
	window   time.Duration

	stopOnce sync.Once
	stopErr  error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionClock overrides the session clock.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession creates a disconnected session.
func NewSession(source FrameSource, det inference.Detector, reader SettingsReader, opts ...SessionOption) *Session {
	s := &Session{
		source:   source,
		detector: det,
		settings: reader,
		now:      time.Now,
		window:   settings.DefaultCooldown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens the frame source. On failure the session stays
// disconnected and may be retried.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateDisconnected {
		return errors.Newf("cannot connect session in state %s", state).
			Component("capture").
			Category(errors.CategoryState).
			Context("operation", "connect").
			Build()
	}

	if err := s.source.Open(ctx); err != nil {
		GetLogger().Warn("failed to connect to camera", logger.Error(err))
		if errors.IsCategory(err, errors.CategoryRTSP) {
			return err
		}
		return errors.New(err).
			Component("capture").
			Category(errors.CategoryRTSP).
			Context("operation", "connect").
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return ErrNotRunning
	}
	s.state = StateRunning
	GetLogger().Info("camera connected")
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether the session is connected.
func (s *Session) Running() bool {
	return s.State() == StateRunning
}

// IsCooldownActive reports whether a fall was logged within the current
// cooldown window.
func (s *Session) IsCooldownActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldown.Active(s.now(), s.window)
}

// ReadAndAnnotateFrame reads one frame, runs detection with the current
// threshold and returns it annotated. Fall detections always appear in the
// result; Qualifying is set only for the first fall outside the cooldown
// window, and only while fall detection is enabled.
func (s *Session) ReadAndAnnotateFrame(ctx context.Context) (*Frame, error) {
	if !s.Running() {
		return nil, ErrNotRunning
	}

	img, err := s.source.ReadFrame(ctx)
	if err != nil {
		if !s.Running() {
			return nil, ErrNotRunning
		}
		return nil, errors.New(fmt.Errorf("%w: %w", ErrFrameUnavailable, err)).
			Component("capture").
			Category(errors.CategoryRTSP).
			Priority(errors.PriorityLow).
			Context("operation", "read_frame").
			Build()
	}

	cfg := s.settings.Snapshot(ctx)

	resized := imaging.Resize(img, FrameWidth, FrameHeight, imaging.Linear)
	dets := s.detector.Detect(resized, cfg.ConfidenceThreshold)
	if dets == nil {
		dets = []inference.Detection{}
	}

	data, err := annotate.EncodeJPEG(annotate.Draw(resized, dets), annotate.DefaultQuality)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrFrameUnavailable, err)).
			Component("capture").
			Category(errors.CategoryProcessing).
			Context("operation", "encode_frame").
			Build()
	}

	frame := &Frame{
		JPEG:       data,
		Detections: dets,
		Timestamp:  s.now(),
	}

	if cfg.EnableFallDetection {
		s.mu.Lock()
		s.window = cfg.Cooldown
		frame.Qualifying, s.cooldown = EvaluateCooldown(dets, s.cooldown, frame.Timestamp, cfg.Cooldown)
		s.mu.Unlock()
		if frame.Qualifying {
			frame.Fall, _ = BestFall(dets)
		}
	}

	return frame, nil
}

// Stop releases the frame source. It is idempotent and safe to call while a
// frame read is in flight.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()

		s.stopErr = s.source.Close()
		GetLogger().Info("camera released")
	})
	return s.stopErr
}

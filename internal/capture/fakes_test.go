package capture

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/tphakala/fallwatch/internal/eventlog"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/settings"
)

// fakeSource serves frames from a channel and blocks when it is empty.
type fakeSource struct {
	openErr error
	frames  chan image.Image
	readErr error

	mu       sync.Mutex
	closes   int
	closedCh chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		frames:   make(chan image.Image, 16),
		closedCh: make(chan struct{}),
	}
}

func (f *fakeSource) Open(context.Context) error { return f.openErr }

func (f *fakeSource) ReadFrame(ctx context.Context) (image.Image, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	select {
	case img := <-f.frames:
		return img, nil
	case <-f.closedCh:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closes == 1 {
		close(f.closedCh)
	}
	return nil
}

func (f *fakeSource) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeSource) push(n int) {
	for range n {
		img := image.NewRGBA(image.Rect(0, 0, 1280, 720))
		for i := range img.Pix {
			img.Pix[i] = 200
		}
		img.Set(0, 0, color.Black)
		f.frames <- img
	}
}

// fakeDetector returns a fixed detection list and records thresholds.
type fakeDetector struct {
	mu         sync.Mutex
	dets       []inference.Detection
	thresholds []float64
	sizes      []image.Point
}

func (d *fakeDetector) Detect(img image.Image, threshold float64) []inference.Detection {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.thresholds = append(d.thresholds, threshold)
	d.sizes = append(d.sizes, img.Bounds().Size())
	return append([]inference.Detection(nil), d.dets...)
}

func (d *fakeDetector) set(dets ...inference.Detection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dets = dets
}

func (d *fakeDetector) Classes() map[int]string { return map[int]string{0: "fall", 1: "person"} }
func (d *fakeDetector) Backend() string         { return "fake" }
func (d *fakeDetector) Close() error            { return nil }

// fakeSettings returns a mutable Config.
type fakeSettings struct {
	mu  sync.Mutex
	cfg settings.Config
}

func newFakeSettings() *fakeSettings {
	cfg := settings.ParseConfig(nil)
	cfg.CameraURL = "rtsp://cam/stream"
	return &fakeSettings{cfg: cfg}
}

func (s *fakeSettings) Snapshot(context.Context) settings.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *fakeSettings) update(fn func(*settings.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingAppender stores appended events in memory.
type recordingAppender struct {
	mu     sync.Mutex
	events []eventlog.Event
	err    error
}

func (r *recordingAppender) Append(_ context.Context, e eventlog.Event) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.events = append(r.events, e)
	return uint(len(r.events)), nil
}

func (r *recordingAppender) all() []eventlog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]eventlog.Event(nil), r.events...)
}

func fall(conf float64, x1 float64) inference.Detection {
	return inference.Detection{BBox: [4]float64{x1, 50, x1 + 100, 200}, Confidence: conf, Class: "fall"}
}

func person(conf float64) inference.Detection {
	return inference.Detection{BBox: [4]float64{300, 20, 400, 300}, Confidence: conf, Class: "person"}
}

package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/ffmpeg"
	"github.com/tphakala/fallwatch/internal/logger"
	"github.com/tphakala/fallwatch/internal/settings"
)

// FrameSource is a connection to a video source that yields decoded frames.
type FrameSource interface {
	// Open connects to the source. It returns once the first frame arrived
	// or ctx is done.
	Open(ctx context.Context) error
	// ReadFrame blocks until a frame newer than the previous one is
	// available or ctx is done.
	ReadFrame(ctx context.Context) (image.Image, error)
	// Close releases the connection.
	Close() error
}

// FFmpegSource reads a camera stream through an ffmpeg child process. A
// reader goroutine drains ffmpeg continuously and keeps only the most
// recent JPEG frame, so a poll always sees a fresh image. When ffmpeg exits
// the reader restarts it with exponential backoff until Close is called.
type FFmpegSource struct {
	url        string
	ffmpegPath string
	transport  string
	frameRate  int

	maxRestarts     int
	restartDelay    time.Duration
	maxRestartDelay time.Duration

	mu      sync.Mutex
	dec     *ffmpeg.Decoder
	latest  []byte
	seq     uint64
	readSeq uint64
	// err is the last decoder failure. It is cleared by the next frame and
	// becomes permanent once restarts are exhausted or the source is closed.
	err    error
	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// FFmpegOption configures an FFmpegSource.
type FFmpegOption func(*FFmpegSource)

// WithTransport sets the RTSP transport, "tcp" or "udp".
func WithTransport(transport string) FFmpegOption {
	return func(s *FFmpegSource) { s.transport = transport }
}

// WithFrameRate limits the frame rate decoded by ffmpeg.
func WithFrameRate(fps int) FFmpegOption {
	return func(s *FFmpegSource) { s.frameRate = fps }
}

// WithRestartBackoff sets the delays between decoder restarts and how many
// consecutive failed restarts are tolerated. Zero maxRestarts retries until
// Close.
func WithRestartBackoff(initial, maxDelay time.Duration, maxRestarts int) FFmpegOption {
	return func(s *FFmpegSource) {
		s.restartDelay = initial
		s.maxRestartDelay = maxDelay
		s.maxRestarts = maxRestarts
	}
}

// NewFFmpegSource creates a source for url using the ffmpeg binary at
// ffmpegPath.
func NewFFmpegSource(url, ffmpegPath string, opts ...FFmpegOption) *FFmpegSource {
	s := &FFmpegSource{
		url:             url,
		ffmpegPath:      ffmpegPath,
		transport:       "tcp",
		restartDelay:    defaultRestartDelay,
		maxRestartDelay: defaultMaxRestartDelay,
		notify:          make(chan struct{}),
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts ffmpeg and waits for the first frame.
func (s *FFmpegSource) Open(ctx context.Context) error {
	redacted := settings.RedactURL(s.url)
	if s.url == "" {
		return errors.Newf("camera URL is not configured").
			Component("capture").
			Category(errors.CategoryConfiguration).
			Context("operation", "open_source").
			Build()
	}

	s.mu.Lock()
	if s.dec != nil || s.closed {
		s.mu.Unlock()
		return errors.Newf("frame source already opened").
			Component("capture").
			Category(errors.CategoryState).
			Context("operation", "open_source").
			Build()
	}
	s.mu.Unlock()

	dec, err := s.startDecoder()
	if err != nil {
		return errors.New(err).
			Component("capture").
			Category(errors.CategoryRTSP).
			Context("operation", "open_source").
			Context("url", redacted).
			Build()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = dec.Close()
		return errors.Newf("frame source closed while opening").
			Component("capture").
			Category(errors.CategoryCancellation).
			Context("operation", "open_source").
			Build()
	}
	s.dec = dec
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(dec)

	GetLogger().Info("camera stream opened",
		logger.String("url", redacted),
		logger.String("transport", s.transport))

	if _, _, err := s.wait(ctx, 0); err != nil {
		_ = s.Close()
		return errors.New(err).
			Component("capture").
			Category(errors.CategoryRTSP).
			Context("operation", "open_source").
			Context("url", redacted).
			Build()
	}
	return nil
}

func (s *FFmpegSource) startDecoder() (*ffmpeg.Decoder, error) {
	return ffmpeg.StartDecoder(context.Background(), s.ffmpegPath,
		ffmpeg.StreamArgs(s.url, s.transport, s.frameRate))
}

// run drains dec and restarts ffmpeg whenever it exits, until Close.
func (s *FFmpegSource) run(dec *ffmpeg.Decoder) {
	defer close(s.done)

	redacted := settings.RedactURL(s.url)
	backoff := newBackoffStrategy(s.maxRestarts, s.restartDelay, s.maxRestartDelay)
	for {
		frames, err := s.pump(dec)
		_ = dec.Close()
		if frames > 0 {
			backoff.reset()
		}

		for {
			s.fail(err)
			delay, ok := backoff.nextDelay()
			if !ok {
				GetLogger().Error("camera stream restarts exhausted",
					logger.String("url", redacted),
					logger.Error(err))
				return
			}
			GetLogger().Warn("camera stream ended, restarting ffmpeg",
				logger.String("url", redacted),
				logger.Duration("delay", delay),
				logger.Error(err))

			select {
			case <-s.stop:
				return
			case <-time.After(delay):
			}

			dec, err = s.startDecoder()
			if err == nil {
				break
			}
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = dec.Close()
			return
		}
		s.dec = dec
		s.mu.Unlock()
	}
}

// pump stores every frame dec produces until it exits and returns the
// number of frames read.
func (s *FFmpegSource) pump(dec *ffmpeg.Decoder) (int, error) {
	frames := 0
	for {
		frame, err := dec.Next()
		if err != nil {
			return frames, err
		}
		frames++

		s.mu.Lock()
		s.latest = append(s.latest[:0], frame...)
		s.seq++
		if !s.closed {
			s.err = nil
		}
		s.broadcastLocked()
		s.mu.Unlock()
	}
}

// fail records a decoder failure and wakes waiters. A closed source keeps
// its own error.
func (s *FFmpegSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.err = err
	s.broadcastLocked()
}

// broadcastLocked wakes every waiter. s.mu must be held.
func (s *FFmpegSource) broadcastLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// wait blocks until a frame with sequence number above after exists and
// returns a copy of it.
func (s *FFmpegSource) wait(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		s.mu.Lock()
		if s.seq > after {
			frame := bytes.Clone(s.latest)
			seq := s.seq
			s.mu.Unlock()
			return frame, seq, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return nil, 0, err
		}
		notify := s.notify
		s.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return nil, 0, fmt.Errorf("waiting for frame: %w", ctx.Err())
		}
	}
}

// ReadFrame returns the most recent frame not yet returned.
func (s *FFmpegSource) ReadFrame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	after := s.readSeq
	s.mu.Unlock()

	frame, seq, err := s.wait(ctx, after)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.readSeq = seq
	s.mu.Unlock()

	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Close stops ffmpeg and waits for the reader goroutine. It is safe to call
// more than once.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dec, done := s.dec, s.done
	s.err = errors.NewStd("frame source closed")
	close(s.stop)
	s.broadcastLocked()
	s.mu.Unlock()

	if dec == nil {
		return nil
	}
	err := dec.Close()
	<-done
	GetLogger().Info("camera stream closed", logger.String("url", settings.RedactURL(s.url)))
	return err
}

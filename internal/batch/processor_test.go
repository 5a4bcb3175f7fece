package batch

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fallwatch/internal/datastore"
	"github.com/tphakala/fallwatch/internal/datastore/repository"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/eventlog"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/securefs"
)

// fakeCodec serves a fixed number of frames and records written frames.
type fakeCodec struct {
	frames  int
	fps     float64
	openErr error

	mu        sync.Mutex
	inputs    []string
	outputs   []string
	written   int
	gotFPS    float64
	readerEnd bool
}

func (c *fakeCodec) OpenReader(_ context.Context, path string) (FrameReader, float64, error) {
	if c.openErr != nil {
		return nil, 0, c.openErr
	}
	c.mu.Lock()
	c.inputs = append(c.inputs, path)
	c.mu.Unlock()
	return &fakeReader{codec: c, remaining: c.frames}, c.fps, nil
}

func (c *fakeCodec) CreateWriter(_ context.Context, path string, fps float64) (FrameWriter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs = append(c.outputs, path)
	c.gotFPS = fps
	return &fakeWriter{codec: c, path: path}, nil
}

type fakeReader struct {
	codec     *fakeCodec
	remaining int
}

func (r *fakeReader) Next() (image.Image, error) {
	if r.remaining == 0 {
		return nil, io.EOF
	}
	r.remaining--
	return image.NewRGBA(image.Rect(0, 0, 320, 240)), nil
}

func (r *fakeReader) Close() error {
	r.codec.mu.Lock()
	r.codec.readerEnd = true
	r.codec.mu.Unlock()
	return nil
}

type fakeWriter struct {
	codec *fakeCodec
	path  string
}

func (w *fakeWriter) WriteFrame(image.Image) error {
	w.codec.mu.Lock()
	w.codec.written++
	w.codec.mu.Unlock()
	return nil
}

func (w *fakeWriter) Close() error {
	return os.WriteFile(w.path, []byte("video"), 0o600)
}

// frameDetector returns detections per frame index.
type frameDetector struct {
	mu        sync.Mutex
	frame     int
	perFrame  map[int][]inference.Detection
	threshold float64
}

func (d *frameDetector) Detect(_ image.Image, threshold float64) []inference.Detection {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = threshold
	dets := d.perFrame[d.frame]
	d.frame++
	return dets
}

func (d *frameDetector) Classes() map[int]string { return map[int]string{0: "fall"} }
func (d *frameDetector) Backend() string         { return "fake" }
func (d *frameDetector) Close() error            { return nil }

type fixedThreshold float64

func (f fixedThreshold) ConfidenceThreshold(context.Context) float64 { return float64(f) }

type processorFixture struct {
	proc    *Processor
	codec   *fakeCodec
	det     *frameDetector
	log     *eventlog.Log
	uploads *securefs.SecureFS
	outputs *securefs.SecureFS
}

func newProcessorFixture(t *testing.T, frames int, perFrame map[int][]inference.Detection, opts ...Option) *processorFixture {
	t.Helper()

	mgr, err := datastore.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	uploads, err := securefs.New(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = uploads.Close() })
	outputs, err := securefs.New(filepath.Join(t.TempDir(), "outputs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = outputs.Close() })

	f := &processorFixture{
		codec:   &fakeCodec{frames: frames, fps: 30},
		det:     &frameDetector{perFrame: perFrame},
		log:     eventlog.New(repository.NewEventRepository(mgr.DB())),
		uploads: uploads,
		outputs: outputs,
	}
	opts = append([]Option{WithIDGenerator(func() string { return "abcd1234" })}, opts...)
	f.proc = NewProcessor(uploads, outputs, f.det, fixedThreshold(0.4), f.log, f.codec, opts...)
	return f
}

func fallAt(conf float64) inference.Detection {
	return inference.Detection{BBox: [4]float64{10, 10, 50, 90}, Confidence: conf, Class: "fall"}
}

func TestProcessLogsEveryFallWithoutCooldown(t *testing.T) {
	// frames 30 and 60 are one second apart at 30 fps
	f := newProcessorFixture(t, 90, map[int][]inference.Detection{
		30: {fallAt(0.8)},
		60: {fallAt(0.9), {BBox: [4]float64{1, 1, 2, 2}, Confidence: 0.7, Class: "person"}},
	})
	ctx := context.Background()

	res, err := f.proc.Process(ctx, Request{Filename: "ward.MP4", Reader: strings.NewReader("data")})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "abcd1234", res.FileID)
	assert.Equal(t, "abcd1234_ward.MP4", res.Filename)
	assert.Equal(t, 90, res.TotalFrames)
	assert.Equal(t, 3, res.TotalDetections)
	assert.Equal(t, 2, res.FallEvents)
	require.Len(t, res.Detections, 3)
	assert.Equal(t, 30, res.Detections[0].Frame)
	assert.Equal(t, "person", res.Detections[2].Class)
	assert.Equal(t, filepath.Join(f.outputs.BaseDir(), "abcd1234", "abcd1234_ward.MP4"), res.OutputVideo)
	assert.InDelta(t, 0.4, f.det.threshold, 1e-9)

	events, err := f.log.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, eventlog.SourceUpload, e.CameraSource)
		assert.Equal(t, "fall", e.DetectionType)
	}
	notes := []string{events[0].Notes, events[1].Notes}
	assert.ElementsMatch(t, []string{"Video: ward.MP4, Frame: 30", "Video: ward.MP4, Frame: 60"}, notes)

	assert.Equal(t, 90, f.codec.written)
	assert.InDelta(t, 30.0, f.codec.gotFPS, 1e-9)
	assert.True(t, f.codec.readerEnd)

	exists, err := f.uploads.Exists("abcd1234_ward.MP4")
	require.NoError(t, err)
	assert.False(t, exists, "uploads are removed by default")
}

func TestProcessPreviewIsCapped(t *testing.T) {
	perFrame := map[int][]inference.Detection{}
	for i := range 15 {
		perFrame[i] = []inference.Detection{{Confidence: 0.6, Class: "person"}}
	}
	f := newProcessorFixture(t, 15, perFrame)

	res, err := f.proc.Process(context.Background(), Request{Filename: "a.mkv", Reader: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, 15, res.TotalDetections)
	assert.Len(t, res.Detections, PreviewLimit)
	assert.Zero(t, res.FallEvents)
}

func TestProcessKeepUploads(t *testing.T) {
	f := newProcessorFixture(t, 1, nil, WithKeepUploads(true))

	_, err := f.proc.Process(context.Background(), Request{Filename: "a.mov", Reader: strings.NewReader("x")})
	require.NoError(t, err)

	exists, err := f.uploads.Exists("abcd1234_a.mov")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProcessRejectsUnsupportedFormat(t *testing.T) {
	f := newProcessorFixture(t, 1, nil)

	for _, name := range []string{"clip.webm", "notes.txt", "", "noext"} {
		_, err := f.proc.Process(context.Background(), Request{Filename: name, Reader: strings.NewReader("x")})
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	}
	assert.Empty(t, f.codec.inputs, "rejected uploads are never decoded")
}

func TestProcessOpenFailureCleansUp(t *testing.T) {
	f := newProcessorFixture(t, 1, nil)
	f.codec.openErr = errors.NewStd("moov atom not found")

	_, err := f.proc.Process(context.Background(), Request{Filename: "broken.mp4", Reader: strings.NewReader("x")})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryProcessing))

	_, statErr := f.outputs.Stat("abcd1234")
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestProcessCanceled(t *testing.T) {
	f := newProcessorFixture(t, 5, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.proc.Process(ctx, Request{Filename: "a.avi", Reader: strings.NewReader("x")})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestValidateFilenameStripsDirectories(t *testing.T) {
	name, err := ValidateFilename("../../etc/cam1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "cam1.mp4", name)

	name, err = ValidateFilename(`C:\videos\cam2.AVI`)
	require.NoError(t, err)
	assert.Equal(t, "cam2.AVI", name)
}

func TestOutputPath(t *testing.T) {
	f := newProcessorFixture(t, 2, nil)
	f.proc.now = func() time.Time { return time.Unix(0, 0) }

	res, err := f.proc.Process(context.Background(), Request{Filename: "hall.mp4", Reader: strings.NewReader("x")})
	require.NoError(t, err)

	path, err := f.proc.OutputPath(res.FileID, res.Filename)
	require.NoError(t, err)
	assert.Equal(t, res.OutputVideo, path)

	_, err = f.proc.OutputPath(res.FileID, "missing.mp4")
	assert.ErrorIs(t, err, ErrOutputNotFound)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))

	for _, bad := range [][2]string{{"..", "hall.mp4"}, {"abcd1234", "../x.mp4"}, {"", "x.mp4"}, {"a/b", "x.mp4"}} {
		_, err = f.proc.OutputPath(bad[0], bad[1])
		require.Error(t, err, bad)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation), bad)
	}
}

func TestMediaType(t *testing.T) {
	tests := map[string]string{
		"a.avi": "video/x-msvideo",
		"a.MOV": "video/quicktime",
		"a.mkv": "video/x-matroska",
		"a.mp4": "video/mp4",
		"a":     "video/mp4",
	}
	for name, want := range tests {
		assert.Equal(t, want, MediaType(name), name)
	}
}

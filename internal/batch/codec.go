package batch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/tphakala/fallwatch/internal/annotate"
	"github.com/tphakala/fallwatch/internal/ffmpeg"
	"github.com/tphakala/fallwatch/internal/logger"
)

// outputQuality is the JPEG quality of frames handed to the encoder.
const outputQuality = 90

// FrameReader yields decoded video frames in order. Next returns io.EOF
// after the last frame.
type FrameReader interface {
	Next() (image.Image, error)
	Close() error
}

// FrameWriter accepts annotated frames for the output video.
type FrameWriter interface {
	WriteFrame(img image.Image) error
	Close() error
}

// Codec opens video files for reading and creates output videos.
type Codec interface {
	// OpenReader returns a reader for path and its frame rate.
	OpenReader(ctx context.Context, path string) (FrameReader, float64, error)
	// CreateWriter creates an output video at path.
	CreateWriter(ctx context.Context, path string, frameRate float64) (FrameWriter, error)
}

// FFmpegCodec decodes and encodes video through ffmpeg.
type FFmpegCodec struct {
	FfmpegPath  string
	FfprobePath string
}

// NewFFmpegCodec creates a codec for the given ffmpeg binary. ffprobe is
// expected next to it or in PATH.
func NewFFmpegCodec(ffmpegPath string) *FFmpegCodec {
	return &FFmpegCodec{
		FfmpegPath:  ffmpegPath,
		FfprobePath: ffmpeg.FfprobePath(ffmpegPath),
	}
}

// OpenReader probes the frame rate and starts decoding path.
func (c *FFmpegCodec) OpenReader(ctx context.Context, path string) (FrameReader, float64, error) {
	fps, err := ffmpeg.ProbeFrameRate(ctx, c.FfprobePath, path)
	if err != nil {
		GetLogger().Warn("could not read frame rate, using default",
			logger.Float64("default_fps", ffmpeg.DefaultFrameRate),
			logger.Error(err))
		fps = ffmpeg.DefaultFrameRate
	}

	dec, err := ffmpeg.StartDecoder(ctx, c.FfmpegPath, ffmpeg.DecodeArgs(path))
	if err != nil {
		return nil, 0, err
	}
	return &ffmpegReader{dec: dec}, fps, nil
}

// CreateWriter starts an encoder writing path.
func (c *FFmpegCodec) CreateWriter(ctx context.Context, path string, frameRate float64) (FrameWriter, error) {
	enc, err := ffmpeg.StartEncoder(ctx, c.FfmpegPath, ffmpeg.EncodeArgs(path, frameRate))
	if err != nil {
		return nil, err
	}
	return &ffmpegWriter{enc: enc}, nil
}

type ffmpegReader struct {
	dec *ffmpeg.Decoder
}

func (r *ffmpegReader) Next() (image.Image, error) {
	frame, err := r.dec.Next()
	if err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func (r *ffmpegReader) Close() error { return r.dec.Close() }

type ffmpegWriter struct {
	enc *ffmpeg.Encoder
}

func (w *ffmpegWriter) WriteFrame(img image.Image) error {
	data, err := annotate.EncodeJPEG(img, outputQuality)
	if err != nil {
		return err
	}
	return w.enc.WriteFrame(data)
}

func (w *ffmpegWriter) Close() error { return w.enc.Close() }

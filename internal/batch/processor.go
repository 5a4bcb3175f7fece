// Package batch runs fall detection over uploaded video files and writes an
// annotated copy of each video.
package batch

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/fallwatch/internal/annotate"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/eventlog"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/logger"
	"github.com/tphakala/fallwatch/internal/securefs"
)

// PreviewLimit caps the detections returned in a Result.
const PreviewLimit = 10

// SupportedExtensions lists the accepted upload extensions.
var SupportedExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

var (
	// ErrUnsupportedFormat is returned for uploads with an unknown extension.
	ErrUnsupportedFormat = errors.NewStd("Invalid file format. Use mp4, avi, mov, or mkv")
	// ErrOutputNotFound is returned when a requested output video does not exist.
	ErrOutputNotFound = errors.NewStd("Video not found")
)

// ThresholdReader returns the current confidence threshold.
type ThresholdReader interface {
	ConfidenceThreshold(ctx context.Context) float64
}

// EventAppender stores logged fall events.
type EventAppender interface {
	Append(ctx context.Context, event eventlog.Event) (uint, error)
}

// Request is one uploaded video.
type Request struct {
	Filename string
	Reader   io.Reader
}

// PreviewDetection is a detection with the index of its frame.
type PreviewDetection struct {
	Frame      int        `json:"frame"`
	Confidence float64    `json:"confidence"`
	Class      string     `json:"class"`
	BBox       [4]float64 `json:"bbox"`
}

// Result summarizes a processed video.
type Result struct {
	Success         bool               `json:"success"`
	FileID          string             `json:"file_id"`
	Filename        string             `json:"filename"`
	TotalFrames     int                `json:"total_frames"`
	TotalDetections int                `json:"total_detections"`
	FallEvents      int                `json:"fall_events"`
	Detections      []PreviewDetection `json:"detections"`
	OutputVideo     string             `json:"output_video"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Processor runs detection over uploaded videos.
type Processor struct {
	uploads     *securefs.SecureFS
	outputs     *securefs.SecureFS
	detector    inference.Detector
	thresholds  ThresholdReader
	events      EventAppender
	codec       Codec
	keepUploads bool
	newID       func() string
	now         func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithKeepUploads keeps source uploads after processing.
func WithKeepUploads(keep bool) Option {
	return func(p *Processor) { p.keepUploads = keep }
}

// WithIDGenerator overrides file id generation.
func WithIDGenerator(fn func() string) Option {
	return func(p *Processor) { p.newID = fn }
}

// WithClock overrides the result timestamp clock.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a Processor storing uploads and outputs in the given
// sandboxes.
func NewProcessor(uploads, outputs *securefs.SecureFS, det inference.Detector, thresholds ThresholdReader, events EventAppender, codec Codec, opts ...Option) *Processor {
	p := &Processor{
		uploads:    uploads,
		outputs:    outputs,
		detector:   det,
		thresholds: thresholds,
		events:     events,
		codec:      codec,
		newID:      func() string { return uuid.NewString()[:8] },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Outputs returns the output video sandbox.
func (p *Processor) Outputs() *securefs.SecureFS {
	return p.outputs
}

// ValidateFilename returns the base name of an upload, or an error when the
// name is empty or its extension is not supported.
func ValidateFilename(filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, "\\", "/")))
	if name == "" || name == "." || name == "/" || name == string(filepath.Separator) {
		return "", errors.New(fmt.Errorf("%w: missing file name", ErrUnsupportedFormat)).
			Component("batch").
			Category(errors.CategoryValidation).
			Build()
	}
	if !slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(name))) {
		return "", errors.New(ErrUnsupportedFormat).
			Component("batch").
			Category(errors.CategoryValidation).
			Context("extension", filepath.Ext(name)).
			Build()
	}
	return name, nil
}

// Process stores the upload, runs detection on every frame, writes the
// annotated video and logs every fall detection. Batch runs apply no
// cooldown.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	name, err := ValidateFilename(req.Filename)
	if err != nil {
		return nil, err
	}

	fileID := p.newID()
	inputName := fileID + "_" + name
	start := time.Now()

	uploadPath, err := p.saveUpload(inputName, req.Reader)
	if err != nil {
		return nil, err
	}
	if !p.keepUploads {
		defer func() {
			if err := p.uploads.Remove(inputName); err != nil {
				GetLogger().Warn("failed to remove upload", logger.String("file", inputName), logger.Error(err))
			}
		}()
	}

	if err := p.outputs.MkdirAll(fileID, 0o750); err != nil {
		return nil, fileError(err, "create_output_dir")
	}
	outputRel := filepath.Join(fileID, inputName)
	outputPath, err := p.outputs.AbsPath(outputRel)
	if err != nil {
		return nil, fileError(err, "resolve_output")
	}

	GetLogger().Info("processing video",
		logger.String("file_id", fileID),
		logger.String("filename", name))

	result, err := p.run(ctx, name, uploadPath, outputPath)
	if err != nil {
		if rmErr := p.outputs.RemoveAll(fileID); rmErr != nil {
			GetLogger().Warn("failed to clean up output", logger.String("file_id", fileID), logger.Error(rmErr))
		}
		return nil, err
	}

	result.Success = true
	result.FileID = fileID
	result.Filename = inputName
	result.OutputVideo = outputPath
	result.Timestamp = p.now()

	GetLogger().Info("video processed",
		logger.String("file_id", fileID),
		logger.Int("frames", result.TotalFrames),
		logger.Int("detections", result.TotalDetections),
		logger.Int("fall_events", result.FallEvents),
		logger.Duration("elapsed", time.Since(start)))

	return result, nil
}

// saveUpload copies the upload into the upload directory.
func (p *Processor) saveUpload(inputName string, r io.Reader) (string, error) {
	f, err := p.uploads.Create(inputName)
	if err != nil {
		return "", fileError(err, "save_upload")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fileError(err, "save_upload")
	}
	if err := f.Close(); err != nil {
		return "", fileError(err, "save_upload")
	}
	return p.uploads.AbsPath(inputName)
}

// run decodes, detects, annotates and encodes every frame.
func (p *Processor) run(ctx context.Context, name, inputPath, outputPath string) (*Result, error) {
	reader, fps, err := p.codec.OpenReader(ctx, inputPath)
	if err != nil {
		return nil, processingError(err, "open_video")
	}
	defer func() { _ = reader.Close() }()

	writer, err := p.codec.CreateWriter(ctx, outputPath, fps)
	if err != nil {
		return nil, processingError(err, "create_output")
	}
	writerClosed := false
	defer func() {
		if !writerClosed {
			_ = writer.Close()
		}
	}()

	threshold := p.thresholds.ConfidenceThreshold(ctx)
	result := &Result{Detections: []PreviewDetection{}}

	for frame := 0; ; frame++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(err).
				Component("batch").
				Category(errors.CategoryCancellation).
				Context("frame", frame).
				Build()
		}

		img, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, processingError(err, "decode_frame")
		}

		dets := p.detector.Detect(img, threshold)
		result.TotalFrames++
		result.TotalDetections += len(dets)

		for _, d := range dets {
			if len(result.Detections) < PreviewLimit {
				result.Detections = append(result.Detections, PreviewDetection{
					Frame:      frame,
					Confidence: d.Confidence,
					Class:      d.Class,
					BBox:       d.BBox,
				})
			}
			if inference.IsFall(d.Class) {
				p.logFall(ctx, name, frame, d)
				result.FallEvents++
			}
		}

		if err := writer.WriteFrame(annotate.Draw(img, dets)); err != nil {
			return nil, processingError(err, "encode_frame")
		}
	}

	writerClosed = true
	if err := writer.Close(); err != nil {
		return nil, processingError(err, "finish_output")
	}
	return result, nil
}

// logFall appends one upload event. Failures are logged and processing
// continues.
func (p *Processor) logFall(ctx context.Context, name string, frame int, d inference.Detection) {
	_, err := p.events.Append(ctx, eventlog.Event{
		DetectionType: "fall",
		Confidence:    d.Confidence,
		CameraSource:  eventlog.SourceUpload,
		Notes:         fmt.Sprintf("Video: %s, Frame: %d", name, frame),
	})
	if err != nil {
		GetLogger().Error("failed to log video fall",
			logger.String("filename", name),
			logger.Int("frame", frame),
			logger.Error(err))
	}
}

// OutputPath resolves an annotated output video. It rejects names that
// leave the output directory and reports ErrOutputNotFound when the file
// does not exist.
func (p *Processor) OutputPath(fileID, filename string) (string, error) {
	if fileID == "" || filename == "" ||
		strings.ContainsAny(fileID, `/\`) || strings.ContainsAny(filename, `/\`) {
		return "", errors.New(fmt.Errorf("%w: %s/%s", securefs.ErrInvalidPath, fileID, filename)).
			Component("batch").
			Category(errors.CategoryValidation).
			Build()
	}

	rel := filepath.Join(fileID, filename)
	exists, err := p.outputs.Exists(rel)
	if err != nil {
		return "", errors.New(err).
			Component("batch").
			Category(errors.CategoryValidation).
			Context("operation", "output_path").
			Build()
	}
	if !exists {
		return "", errors.New(ErrOutputNotFound).
			Component("batch").
			Category(errors.CategoryNotFound).
			Context("file_id", fileID).
			Build()
	}
	return p.outputs.AbsPath(rel)
}

// MediaType returns the Content-Type for an output video.
func MediaType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "video/mp4"
	}
}

func fileError(err error, operation string) error {
	return errors.New(err).
		Component("batch").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Build()
}

func processingError(err error, operation string) error {
	return errors.New(err).
		Component("batch").
		Category(errors.CategoryProcessing).
		Context("operation", operation).
		Build()
}

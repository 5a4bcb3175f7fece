// Package inference wraps a YOLOv8 style object detection model behind the
// Detector interface. Models are loaded with go-tflite for .tflite files and
// onnxruntime for .onnx files.
package inference

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/logger"
)

// Backend names reported by Detector.Backend.
const (
	BackendTFLite = "tflite"
	BackendONNX   = "onnx"
)

const (
	// ModelType is reported by model info.
	ModelType = "YOLOv8"
	// DefaultInputSize is the square model input in pixels.
	DefaultInputSize = 640
	// DefaultIoUThreshold is the non-maximum suppression overlap limit.
	DefaultIoUThreshold = 0.45
)

// Detection is one detected object in source image pixels.
type Detection struct {
	BBox       [4]float64 `json:"bbox"` // x1, y1, x2, y2
	Confidence float64    `json:"confidence"`
	Class      string     `json:"class"`
}

// Detector runs object detection on a single image.
type Detector interface {
	// Detect returns detections at or above threshold. A frame that cannot
	// be processed yields an empty slice; errors are logged, not returned.
	Detect(img image.Image, threshold float64) []Detection
	// Classes returns the class index to name mapping.
	Classes() map[int]string
	// Backend returns BackendTFLite or BackendONNX.
	Backend() string
	// Close releases the model.
	Close() error
}

// Info describes the loaded model.
type Info struct {
	ModelPath string         `json:"model_path"`
	ModelType string         `json:"model_type"`
	Backend   string         `json:"backend"`
	Classes   map[int]string `json:"classes"`
	InputSize int            `json:"input_size"`
}

// ModelInfo returns the description served by the model info endpoint.
func ModelInfo(d Detector, modelPath string, inputSize int) Info {
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	return Info{
		ModelPath: modelPath,
		ModelType: ModelType,
		Backend:   d.Backend(),
		Classes:   d.Classes(),
		InputSize: inputSize,
	}
}

// IsFall reports whether a class label denotes a fall.
func IsFall(class string) bool {
	return strings.Contains(strings.ToLower(class), "fall")
}

// New loads the model at cfg.Path. Any failure is returned as a model
// initialization error, which callers treat as fatal.
func New(cfg conf.ModelSettings) (Detector, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultInputSize
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = DefaultIoUThreshold
	}

	backend := backendFor(cfg.Path)
	if backend == "" {
		return nil, errors.ModelError(
			fmt.Errorf("unsupported model format %q", filepath.Ext(cfg.Path)),
			cfg.Path, "")
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, errors.ModelError(err, cfg.Path, backend)
	}

	labels, err := LoadLabels(cfg.LabelPath)
	if err != nil {
		return nil, errors.New(err).
			Component("inference").
			Category(errors.CategoryLabelLoad).
			Priority(errors.PriorityCritical).
			Context("label_path", cfg.LabelPath).
			Build()
	}

	var d Detector
	switch backend {
	case BackendTFLite:
		d, err = newTFLiteDetector(cfg, labels)
	case BackendONNX:
		d, err = newONNXDetector(cfg, labels)
	}
	if err != nil {
		return nil, errors.ModelError(err, cfg.Path, backend)
	}

	GetLogger().Info("model loaded",
		logger.String("path", cfg.Path),
		logger.String("backend", backend),
		logger.Int("classes", len(d.Classes())),
		logger.Int("input_size", cfg.InputSize))
	return d, nil
}

func backendFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tflite":
		return BackendTFLite
	case ".onnx":
		return BackendONNX
	default:
		return ""
	}
}

// classMap converts ordered names into the index map.
func classMap(names []string) map[int]string {
	m := make(map[int]string, len(names))
	for i, name := range names {
		m[i] = name
	}
	return m
}

package inference

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/logger"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// initONNXRuntime loads the shared library once per process.
func initONNXRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// onnxDetector runs a YOLOv8 onnx export with NCHW input and box coordinates
// in input pixels.
type onnxDetector struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	inputSize    int
	layout       yoloLayout
	labels       []string
	iouThreshold float64
}

func newONNXDetector(cfg conf.ModelSettings, labels []string) (*onnxDetector, error) {
	if err := initONNXRuntime(cfg.ONNXLibrary); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("error reading model inputs: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model has no inputs or outputs")
	}

	inputSize := cfg.InputSize
	if dims := inputs[0].Dimensions; len(dims) == 4 && dims[2] > 0 {
		inputSize = int(dims[2])
	}

	if len(labels) == 0 {
		labels = namesFromMetadata(cfg.Path)
	}

	channels, anchors := 0, anchorCount(inputSize)
	if dims := outputs[0].Dimensions; len(dims) == 3 {
		channels = int(dims[1])
		if dims[2] > 0 {
			anchors = int(dims[2])
		}
	}
	if channels <= 4 {
		if len(labels) == 0 {
			return nil, fmt.Errorf("cannot infer class count from dynamic output shape, configure model.labelpath")
		}
		channels = 4 + len(labels)
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()
	_ = options.SetIntraOpNumThreads(threads)
	_ = options.SetInterOpNumThreads(1)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputSize), int64(inputSize)))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(channels), int64(anchors)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.Path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	classes := channels - 4
	return &onnxDetector{
		session:      session,
		input:        inputTensor,
		output:       outputTensor,
		inputSize:    inputSize,
		layout:       yoloLayout{classes: classes, anchors: anchors},
		labels:       resolveLabels(labels, classes),
		iouThreshold: cfg.IoUThreshold,
	}, nil
}

// namesFromMetadata reads class names embedded by ultralytics exports.
func namesFromMetadata(path string) []string {
	meta, err := ort.GetModelMetadata(path)
	if err != nil {
		return nil
	}
	defer meta.Destroy()

	raw, ok, err := meta.LookupCustomMetadataMap("names")
	if err != nil || !ok {
		return nil
	}
	return parseNamesMetadata(raw)
}

func (d *onnxDetector) Detect(img image.Image, threshold float64) []Detection {
	if img == nil || img.Bounds().Empty() {
		GetLogger().Warn("skipping empty frame")
		return []Detection{}
	}
	bounds := img.Bounds()
	resized := resizeSquare(img, d.inputSize)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return []Detection{}
	}

	fillCHW(d.input.GetData(), resized, d.inputSize)
	if err := d.session.Run(); err != nil {
		GetLogger().Warn("model inference failed", logger.Error(err))
		return []Detection{}
	}

	dets := decodeYOLO(d.output.GetData(), d.layout, decodeParams{
		inputSize:    d.inputSize,
		srcWidth:     bounds.Dx(),
		srcHeight:    bounds.Dy(),
		threshold:    threshold,
		iouThreshold: d.iouThreshold,
		labels:       func(i int) string { return d.labels[i] },
	})
	if dets == nil {
		return []Detection{}
	}
	return dets
}

func (d *onnxDetector) Classes() map[int]string { return classMap(d.labels) }

func (d *onnxDetector) Backend() string { return BackendONNX }

func (d *onnxDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			return err
		}
		d.session = nil
	}
	if d.input != nil {
		_ = d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		_ = d.output.Destroy()
		d.output = nil
	}
	return nil
}

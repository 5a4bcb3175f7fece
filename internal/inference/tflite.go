package inference

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/logger"
)

// tfliteDetector runs a YOLOv8 tflite export. Ultralytics tflite exports take
// NHWC input and emit normalized box coordinates.
type tfliteDetector struct {
	mu            sync.Mutex
	model         *tflite.Model
	interpreter   *tflite.Interpreter
	deleteXNNPACK func()

	inputSize    int
	nchw         bool
	layout       yoloLayout
	labels       []string
	iouThreshold float64
}

func newTFLiteDetector(cfg conf.ModelSettings, labels []string) (*tfliteDetector, error) {
	model := tflite.NewModelFromFile(cfg.Path)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model")
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	d := &tfliteDetector{model: model, iouThreshold: cfg.IoUThreshold}

	options := tflite.NewInterpreterOptions()
	defer options.Delete()

	log := GetLogger()
	if cfg.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
			d.deleteXNNPACK = delegate.Delete
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	d.interpreter = tflite.NewInterpreter(model, options)
	if d.interpreter == nil {
		d.release()
		return nil, fmt.Errorf("cannot create interpreter")
	}
	if status := d.interpreter.AllocateTensors(); status != tflite.OK {
		d.release()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	input := d.interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 || input.Type() != tflite.Float32 {
		d.release()
		return nil, fmt.Errorf("model input must be a float32 image tensor")
	}
	switch {
	case input.Dim(3) == 3:
		d.inputSize = input.Dim(1)
	case input.Dim(1) == 3:
		d.nchw = true
		d.inputSize = input.Dim(2)
	default:
		d.release()
		return nil, fmt.Errorf("unsupported input shape")
	}

	output := d.interpreter.GetOutputTensor(0)
	if output == nil || output.NumDims() != 3 || output.Dim(1) <= 4 {
		d.release()
		return nil, fmt.Errorf("model output must be [1, 4+classes, anchors]")
	}
	classes := output.Dim(1) - 4
	d.layout = yoloLayout{classes: classes, anchors: output.Dim(2), normalized: true}
	d.labels = resolveLabels(labels, classes)

	return d, nil
}

func (d *tfliteDetector) Detect(img image.Image, threshold float64) []Detection {
	if img == nil || img.Bounds().Empty() {
		GetLogger().Warn("skipping empty frame")
		return []Detection{}
	}
	bounds := img.Bounds()
	resized := resizeSquare(img, d.inputSize)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.interpreter == nil {
		return []Detection{}
	}

	input := d.interpreter.GetInputTensor(0)
	if d.nchw {
		fillCHW(input.Float32s(), resized, d.inputSize)
	} else {
		fillHWC(input.Float32s(), resized, d.inputSize)
	}

	if status := d.interpreter.Invoke(); status != tflite.OK {
		GetLogger().Warn("tensor invoke failed", logger.Any("status", status))
		return []Detection{}
	}

	dets := decodeYOLO(d.interpreter.GetOutputTensor(0).Float32s(), d.layout, decodeParams{
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

func (d *tfliteDetector) Classes() map[int]string { return classMap(d.labels) }

func (d *tfliteDetector) Backend() string { return BackendTFLite }

func (d *tfliteDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release()
	return nil
}

func (d *tfliteDetector) release() {
	if d.interpreter != nil {
		d.interpreter.Delete()
		d.interpreter = nil
	}
	if d.deleteXNNPACK != nil {
		d.deleteXNNPACK()
		d.deleteXNNPACK = nil
	}
	if d.model != nil {
		d.model.Delete()
		d.model = nil
	}
}

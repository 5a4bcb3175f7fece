package analysis

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tphakala/fallwatch/internal/batch"
	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/logger"
)

// FileAnalysis runs batch detection on a single video and prints the
// summary as JSON to out.
func FileAnalysis(s *conf.Settings, inputPath string, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	det, err := inference.New(s.Model)
	if err != nil {
		return err
	}
	defer func() { _ = det.Close() }()

	ffmpegPath, err := ResolveFfmpeg(s)
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}

	svc, err := OpenServices(ctx, s)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	return ProcessFile(ctx, svc.NewProcessor(s, det, ffmpegPath), inputPath, out)
}

// VideoProcessor is the part of batch.Processor used by ProcessFile.
type VideoProcessor interface {
	Process(ctx context.Context, req batch.Request) (*batch.Result, error)
}

// ProcessFile feeds inputPath to proc and writes the result as indented JSON.
func ProcessFile(ctx context.Context, proc VideoProcessor, inputPath string, out io.Writer) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("path", inputPath).
			Build()
	}
	defer func() { _ = f.Close() }()

	GetLogger().Info("analyzing video", logger.String("path", inputPath))

	result, err := proc.Process(ctx, batch.Request{Filename: filepath.Base(inputPath), Reader: f})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

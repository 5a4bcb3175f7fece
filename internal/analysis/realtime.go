package analysis

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/fallwatch/internal/api"
	"github.com/tphakala/fallwatch/internal/batch"
	"github.com/tphakala/fallwatch/internal/capture"
	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/logger"
	"github.com/tphakala/fallwatch/internal/observability"
)

// observedProcessor counts batch outcomes.
type observedProcessor struct {
	*batch.Processor
	metrics *observability.Metrics
}

func (p observedProcessor) Process(ctx context.Context, req batch.Request) (*batch.Result, error) {
	result, err := p.Processor.Process(ctx, req)
	p.metrics.RecordBatch(err)
	return result, err
}

// RealtimeAnalysis serves the API, the live camera session and alerting
// until SIGINT or SIGTERM.
func RealtimeAnalysis(s *conf.Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Realtime(ctx, s)
}

// Realtime runs until ctx is cancelled.
func Realtime(ctx context.Context, s *conf.Settings) error {
	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	errors.AddErrorHook(metrics.ErrorHook)

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

	svc.Events.AddListener(metrics)

	manager := capture.NewManager(det, svc.Settings, svc.Events,
		capture.FFmpegSourceFactory(ffmpegPath, s.Capture.Transport, s.Capture.FrameRate),
		capture.WithPollObserver(metrics.ObservePoll))
	defer func() { _ = manager.Close() }()

	processor := observedProcessor{Processor: svc.NewProcessor(s, det, ffmpegPath), metrics: metrics}

	dispatcher, mqttClient := NewAlertDispatcher(s, svc.Settings)
	if dispatcher.Sinks() > 0 {
		svc.Events.AddListener(dispatcher)
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
	}
	if mqttClient != nil {
		defer mqttClient.Disconnect()
	}

	server, err := api.New(s, api.Dependencies{
		Detector: det,
		Live:     manager,
		Videos:   processor,
		Events:   svc.Events,
		Auth:     svc.Auth,
		Settings: svc.Settings,
	}, api.WithMetrics(metrics))
	if err != nil {
		return err
	}

	GetLogger().Info("fallwatch started",
		logger.String("node", s.Main.Name),
		logger.String("backend", det.Backend()),
		logger.Int("alert_sinks", dispatcher.Sinks()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		start := time.Now()
		manager.Stop()
		GetLogger().Info("live session stopped", logger.Duration("elapsed", time.Since(start)))
		return nil
	})

	return g.Wait()
}

package alerts

import (
	"context"

	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/mqtt"
	"github.com/tphakala/fallwatch/internal/settings"
)

// MQTTSink publishes alerts as JSON to a broker topic.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	node   string
}

// NewMQTTSink creates a sink publishing to topic. node identifies this
// installation in the payload.
func NewMQTTSink(client mqtt.Client, topic, node string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, node: node}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Enabled implements Sink. MQTT is switched on in the static configuration
// only, so the sink always publishes.
func (s *MQTTSink) Enabled(settings.Config) bool { return true }

// Send connects on demand and publishes the alert.
func (s *MQTTSink) Send(ctx context.Context, alert Alert) error {
	if !s.client.IsConnected() {
		if err := s.client.Connect(ctx); err != nil {
			return err
		}
	}

	payload, err := mqtt.FallEventDTO{
		EventID:       alert.Event.ID,
		DetectionType: alert.Event.DetectionType,
		Confidence:    alert.Event.Confidence,
		Source:        alert.Event.CameraSource,
		Location:      alert.Location(),
		Node:          s.node,
		Notes:         alert.Event.Notes,
		Timestamp:     alert.Event.Timestamp,
	}.Marshal()
	if err != nil {
		return errors.New(err).
			Component("alerts").
			Category(errors.CategoryMQTTPublish).
			Build()
	}
	return s.client.Publish(ctx, s.topic, payload)
}

package analysis

import (
	"github.com/tphakala/fallwatch/internal/alerts"
	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/logger"
	"github.com/tphakala/fallwatch/internal/mqtt"
)

// NewAlertDispatcher builds a dispatcher with the sinks enabled in s. A sink
// that cannot be built is logged and skipped.
func NewAlertDispatcher(s *conf.Settings, reader alerts.SettingsReader) (*alerts.Dispatcher, mqtt.Client) {
	var (
		opts       []alerts.Option
		mqttClient mqtt.Client
	)

	if s.Alerts.MQTT.Enabled {
		mqttClient = mqtt.NewClient(mqtt.Config{
			Broker:   s.Alerts.MQTT.Broker,
			ClientID: s.Main.Name,
			Username: s.Alerts.MQTT.Username,
			Password: s.Alerts.MQTT.Password,
			Retain:   s.Alerts.MQTT.Retain,
		})
		opts = append(opts, alerts.WithSink(alerts.NewMQTTSink(mqttClient, s.Alerts.MQTT.Topic, s.Main.Name)))
	}

	if s.Alerts.Shoutrrr.Enabled {
		sink, err := alerts.NewShoutrrrSink(s.Alerts.Shoutrrr.URLs, s.Alerts.Shoutrrr.Timeout)
		if err != nil {
			GetLogger().Error("shoutrrr alerts disabled", logger.Error(err))
		} else {
			opts = append(opts, alerts.WithSink(sink))
		}
	}

	return alerts.NewDispatcher(reader, s.Alerts.MinInterval, opts...), mqttClient
}

// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "FallWatch")

	viper.SetDefault("model.path", "models/best.onnx")
	viper.SetDefault("model.labelpath", "models/labels.txt")
	viper.SetDefault("model.inputsize", 640)
	viper.SetDefault("model.threads", 0)
	viper.SetDefault("model.usexnnpack", true)
	viper.SetDefault("model.onnxlibrary", "")
	viper.SetDefault("model.iouthreshold", 0.45)

	viper.SetDefault("webserver.listen", ":8000")
	viper.SetDefault("webserver.bodylimit", "512M")
	viper.SetDefault("webserver.corsorigins", []string{"*"})
	viper.SetDefault("webserver.metrics", true)
	viper.SetDefault("webserver.frametimeout", 15*time.Second)

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.debug", false)
	viper.SetDefault("database.sqlite.path", "fall_detection.db")
	viper.SetDefault("database.mysql.username", "fallwatch")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.mysql.database", "fallwatch")

	viper.SetDefault("storage.uploaddir", "uploads")
	viper.SetDefault("storage.outputdir", "outputs")
	viper.SetDefault("storage.keepuploads", true)

	viper.SetDefault("capture.ffmpegpath", "")
	viper.SetDefault("capture.transport", "tcp")
	viper.SetDefault("capture.framerate", 0)

	viper.SetDefault("alerts.mininterval", 30*time.Second)
	viper.SetDefault("alerts.mqtt.enabled", false)
	viper.SetDefault("alerts.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("alerts.mqtt.topic", "fallwatch/events")
	viper.SetDefault("alerts.mqtt.username", "")
	viper.SetDefault("alerts.mqtt.password", "")
	viper.SetDefault("alerts.mqtt.retain", false)
	viper.SetDefault("alerts.shoutrrr.enabled", false)
	viper.SetDefault("alerts.shoutrrr.urls", []string{})
	viper.SetDefault("alerts.shoutrrr.timeout", 10*time.Second)

	viper.SetDefault("security.requireauth", false)
	viper.SetDefault("security.adminusername", "admin")
	viper.SetDefault("security.adminpassword", "admin123")

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file.enabled", false)
	viper.SetDefault("logging.file.path", "logs/fallwatch.log")
	viper.SetDefault("logging.file.level", "info")
}

// env.go: environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tphakala/fallwatch/internal/logger"
)

// envBinding maps an environment variable to a config key with optional validation.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"model.path", "FALLWATCH_MODEL_PATH", nil},
		{"model.labelpath", "FALLWATCH_MODEL_LABELPATH", nil},
		{"model.onnxlibrary", "FALLWATCH_ONNX_LIBRARY", nil},
		{"model.threads", "FALLWATCH_MODEL_THREADS", validateEnvNonNegativeInt},
		{"webserver.listen", "FALLWATCH_LISTEN", nil},
		{"database.type", "FALLWATCH_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "FALLWATCH_SQLITE_PATH", nil},
		{"database.mysql.host", "FALLWATCH_MYSQL_HOST", nil},
		{"database.mysql.password", "FALLWATCH_MYSQL_PASSWORD", nil},
		{"storage.uploaddir", "FALLWATCH_UPLOAD_DIR", nil},
		{"storage.outputdir", "FALLWATCH_OUTPUT_DIR", nil},
		{"capture.ffmpegpath", "FALLWATCH_FFMPEG_PATH", nil},
		{"alerts.mqtt.password", "FALLWATCH_MQTT_PASSWORD", nil},
		{"security.adminpassword", "FALLWATCH_ADMIN_PASSWORD", nil},
		{"logging.defaultlevel", "FALLWATCH_LOG_LEVEL", validateEnvLogLevel},
	}
}

// bindEnvVars binds environment variables to config keys. Invalid values are
// logged and ignored so the config file value stays in effect.
func bindEnvVars() error {
	for _, binding := range getEnvBindings() {
		value, set := os.LookupEnv(binding.EnvVar)
		if set && binding.Validate != nil {
			if err := binding.Validate(value); err != nil {
				GetLogger().Warn("ignoring invalid environment variable",
					logger.String("env", binding.EnvVar),
					logger.Error(err))
				continue
			}
		}
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			return fmt.Errorf("failed to bind %s: %w", binding.EnvVar, err)
		}
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer: %q", value)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative: %d", n)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case DatabaseSQLite, DatabaseMySQL:
		return nil
	default:
		return fmt.Errorf("unsupported database type %q", value)
	}
}

func validateEnvLogLevel(value string) error {
	switch logger.LogLevel(strings.ToLower(value)) {
	case logger.LogLevelTrace, logger.LogLevelDebug, logger.LogLevelInfo, logger.LogLevelWarn, logger.LogLevelError:
		return nil
	default:
		return fmt.Errorf("unknown log level %q", value)
	}
}

// config.go: settings struct for FallWatch and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/fallwatch/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// ModelSettings selects and tunes the detection model.
type ModelSettings struct {
	Path         string  // path to .tflite or .onnx model file
	LabelPath    string  // optional class label file, one label per line
	InputSize    int     // square model input size in pixels
	Threads      int     // inference threads, 0 lets the runtime decide
	UseXNNPACK   bool    // enable the XNNPACK delegate for tflite models
	ONNXLibrary  string  // path to the onnxruntime shared library
	IoUThreshold float64 // non-maximum suppression IoU threshold
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Listen       string        // listen address, e.g. ":8000"
	BodyLimit    string        // max request body, e.g. "512M" for video uploads
	CORSOrigins  []string      // allowed CORS origins
	Metrics      bool          // expose Prometheus metrics on /metrics
	FrameTimeout time.Duration // deadline for a single live frame poll
}

// SQLiteSettings contains sqlite specific settings.
type SQLiteSettings struct {
	Path string // database file path
}

// MySQLSettings contains MySQL connection settings.
type MySQLSettings struct {
	Username string
	Password string
	Host     string
	Port     int
	Database string
}

// DatabaseSettings selects the relational store.
type DatabaseSettings struct {
	Type   string // "sqlite" or "mysql"
	Debug  bool   // log every statement at debug instead of trace level
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// StorageSettings contains upload and annotated output locations.
type StorageSettings struct {
	UploadDir   string // uploaded source videos
	OutputDir   string // annotated output videos, one sub directory per file id
	KeepUploads bool   // keep source uploads after processing
}

// CaptureSettings configures the ffmpeg frame source.
type CaptureSettings struct {
	FfmpegPath string // path to ffmpeg, resolved from PATH when empty
	Transport  string // RTSP transport, "tcp" or "udp"
	FrameRate  int    // decoded frames per second requested from ffmpeg, 0 keeps source rate
}

// MQTTSettings configures the MQTT alert sink.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	Username string
	Password string
	Retain   bool
}

// ShoutrrrSettings configures push alerts, e.g. smtp:// or twilio:// URLs.
type ShoutrrrSettings struct {
	Enabled bool
	URLs    []string
	Timeout time.Duration
}

// AlertSettings configures alert delivery for logged fall events.
type AlertSettings struct {
	MinInterval time.Duration // minimum time between two alerts
	MQTT        MQTTSettings
	Shoutrrr    ShoutrrrSettings
}

// SecuritySettings configures credential checks on mutating endpoints.
type SecuritySettings struct {
	RequireAuth   bool   // require admin basic credentials for settings and delete endpoints
	AdminUsername string // seeded administrator account
	AdminPassword string // initial administrator password
}

// Settings contains all configuration options for FallWatch.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string // name of this node, used as MQTT client id and alert title
	}

	Model     ModelSettings
	WebServer WebServerSettings
	Database  DatabaseSettings
	Storage   StorageSettings
	Capture   CaptureSettings
	Alerts    AlertSettings
	Security  SecuritySettings
	Logging   logger.LoggingConfig
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := unmarshalSettings()
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// unmarshalSettings decodes the current viper state and validates it.
func unmarshalSettings() (*Settings, error) {
	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper sets defaults, binds environment variables and reads the config file.
func initViper() error {
	viper.SetConfigType("yaml")

	if viper.ConfigFileUsed() == "" {
		viper.SetConfigName("config")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig returns the embedded default config.yaml.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically through a temp file.
// Comments and key order of the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

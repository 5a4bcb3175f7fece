// conf/validate.go

package conf

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Supported database types
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateModelSettings,
		validateDatabaseSettings,
		validateStorageSettings,
		validateCaptureSettings,
		validateAlertSettings,
		validateSecuritySettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateModelSettings(s *Settings) error {
	m := &s.Model
	if m.Path == "" {
		return fmt.Errorf("model.path must be set")
	}
	switch strings.ToLower(filepath.Ext(m.Path)) {
	case ".onnx", ".tflite":
	default:
		return fmt.Errorf("model.path must point to a .onnx or .tflite file, got %q", m.Path)
	}
	if m.InputSize <= 0 || m.InputSize%32 != 0 {
		return fmt.Errorf("model.inputsize must be a positive multiple of 32, got %d", m.InputSize)
	}
	if m.Threads < 0 {
		return fmt.Errorf("model.threads must not be negative")
	}
	if m.IoUThreshold <= 0 || m.IoUThreshold > 1 {
		return fmt.Errorf("model.iouthreshold must be in (0, 1], got %v", m.IoUThreshold)
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	db := &s.Database
	db.Type = strings.ToLower(db.Type)
	switch db.Type {
	case DatabaseSQLite:
		if db.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path must be set")
		}
	case DatabaseMySQL:
		if db.MySQL.Host == "" || db.MySQL.Database == "" {
			return fmt.Errorf("database.mysql.host and database.mysql.database must be set")
		}
		if db.MySQL.Port <= 0 || db.MySQL.Port > 65535 {
			return fmt.Errorf("database.mysql.port out of range: %d", db.MySQL.Port)
		}
	default:
		return fmt.Errorf("database.type must be %q or %q, got %q", DatabaseSQLite, DatabaseMySQL, db.Type)
	}
	return nil
}

func validateStorageSettings(s *Settings) error {
	if s.Storage.UploadDir == "" || s.Storage.OutputDir == "" {
		return fmt.Errorf("storage.uploaddir and storage.outputdir must be set")
	}
	return nil
}

func validateCaptureSettings(s *Settings) error {
	c := &s.Capture
	c.Transport = strings.ToLower(c.Transport)
	if c.Transport != "tcp" && c.Transport != "udp" {
		return fmt.Errorf("capture.transport must be tcp or udp, got %q", c.Transport)
	}
	if c.FrameRate < 0 {
		return fmt.Errorf("capture.framerate must not be negative")
	}
	return nil
}

func validateAlertSettings(s *Settings) error {
	a := &s.Alerts
	if a.MinInterval < 0 {
		return fmt.Errorf("alerts.mininterval must not be negative")
	}
	if a.MQTT.Enabled && (a.MQTT.Broker == "" || a.MQTT.Topic == "") {
		return fmt.Errorf("alerts.mqtt.broker and alerts.mqtt.topic must be set when MQTT is enabled")
	}
	if a.Shoutrrr.Enabled && len(a.Shoutrrr.URLs) == 0 {
		return fmt.Errorf("alerts.shoutrrr.urls must contain at least one URL when enabled")
	}
	return nil
}

func validateSecuritySettings(s *Settings) error {
	if s.Security.AdminUsername == "" {
		return fmt.Errorf("security.adminusername must be set")
	}
	if s.Security.RequireAuth && len(s.Security.AdminPassword) < 6 {
		return fmt.Errorf("security.adminpassword must be at least 6 characters when requireauth is enabled")
	}
	return nil
}

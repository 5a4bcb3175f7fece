package settings

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Fallbacks used when a stored value is missing, unparsable or out of range.
const (
	DefaultConfidenceThreshold = 0.5
	DefaultCooldown            = 30 * time.Second
)

// Config is a typed snapshot of the runtime settings. Values are parsed and
// validated once at read time.
type Config struct {
	ConfidenceThreshold     float64
	Cooldown                time.Duration
	EnableFallDetection     bool
	EnableFightingDetection bool

	CameraURL      string
	CameraUsername string
	CameraPassword string
	CameraLocation string

	AlertEmailEnabled bool
	AlertEmailAddress string
	AlertSMSEnabled   bool
	AlertPhoneNumber  string
	AlertSoundEnabled bool

	OrganizationName string
	ContactPerson    string
	EmergencyContact string
	SystemLocation   string
}

// ParseConfig builds a Config from flat stored values. Missing keys use the
// seed defaults and bad values fail closed to the documented fallbacks.
func ParseConfig(values map[string]string) Config {
	str := func(key string) string {
		if v, ok := values[key]; ok {
			return v
		}
		v, _ := defaultValue(key)
		return v
	}
	boolean := func(key string) bool {
		def, _ := defaultValue(key)
		return parseBool(str(key), parseBool(def, false))
	}

	cfg := Config{
		ConfidenceThreshold:     DefaultConfidenceThreshold,
		Cooldown:                DefaultCooldown,
		EnableFallDetection:     boolean(KeyEnableFallDetection),
		EnableFightingDetection: boolean(KeyEnableFightingDetection),
		CameraURL:               strings.TrimSpace(str(KeyCameraURL)),
		CameraUsername:          str(KeyCameraUsername),
		CameraPassword:          str(KeyCameraPassword),
		CameraLocation:          str(KeyCameraLocation),
		AlertEmailEnabled:       boolean(KeyAlertEmailEnabled),
		AlertEmailAddress:       str(KeyAlertEmailAddress),
		AlertSMSEnabled:         boolean(KeyAlertSMSEnabled),
		AlertPhoneNumber:        str(KeyAlertPhoneNumber),
		AlertSoundEnabled:       boolean(KeyAlertSoundEnabled),
		OrganizationName:        str(KeyOrganizationName),
		ContactPerson:           str(KeyContactPerson),
		EmergencyContact:        str(KeyEmergencyContact),
		SystemLocation:          str(KeySystemLocation),
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(str(KeyConfidenceThreshold)), 64); err == nil && v >= 0 && v <= 1 {
		cfg.ConfidenceThreshold = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(str(KeyCooldownSeconds))); err == nil && v >= 0 {
		cfg.Cooldown = time.Duration(v) * time.Second
	}

	return cfg
}

// StreamURL returns the camera URL with the configured credentials injected
// when the URL carries none of its own.
func (c Config) StreamURL() string {
	if c.CameraURL == "" || c.CameraUsername == "" {
		return c.CameraURL
	}
	u, err := url.Parse(c.CameraURL)
	if err != nil || u.User != nil || u.Host == "" {
		return c.CameraURL
	}
	if c.CameraPassword != "" {
		u.User = url.UserPassword(c.CameraUsername, c.CameraPassword)
	} else {
		u.User = url.User(c.CameraUsername)
	}
	return u.String()
}

// RedactedStreamURL is StreamURL with any password masked.
func (c Config) RedactedStreamURL() string {
	return RedactURL(c.StreamURL())
}

// RedactURL masks the password of a URL. Unparsable input is returned empty
// so credentials never leak through an error path.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Redacted()
}

// parseBool accepts the strconv forms plus yes/no and on/off.
func parseBool(value string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return b
}

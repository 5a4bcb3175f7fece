package settings

import "github.com/tphakala/fallwatch/internal/datastore"

// Setting keys.
const (
	KeyCameraURL               = "camera_url"
	KeyCameraUsername          = "camera_username"
	KeyCameraPassword          = "camera_password"
	KeyCameraLocation          = "camera_location"
	KeyConfidenceThreshold     = "confidence_threshold"
	KeyCooldownSeconds         = "cooldown_seconds"
	KeyEnableFallDetection     = "enable_fall_detection"
	KeyEnableFightingDetection = "enable_fighting_detection"
	KeyAlertEmailEnabled       = "alert_email_enabled"
	KeyAlertEmailAddress       = "alert_email_address"
	KeyAlertSMSEnabled         = "alert_sms_enabled"
	KeyAlertPhoneNumber        = "alert_phone_number"
	KeyAlertSoundEnabled       = "alert_sound_enabled"
	KeyOrganizationName        = "organization_name"
	KeyContactPerson           = "contact_person"
	KeyEmergencyContact        = "emergency_contact"
	KeySystemLocation          = "system_location"
)

// Categories returned by ByCategory.
const (
	CategoryCamera    = "camera"
	CategoryDetection = "detection"
	CategoryAlerts    = "alerts"
	CategorySystem    = "system"
)

// Defaults is the seed set, in display order.
var Defaults = []datastore.Setting{
	{Key: KeyCameraURL, Value: ""},
	{Key: KeyCameraUsername, Value: ""},
	{Key: KeyCameraPassword, Value: ""},
	{Key: KeyCameraLocation, Value: "Main Room"},
	{Key: KeyConfidenceThreshold, Value: "0.5"},
	{Key: KeyCooldownSeconds, Value: "30"},
	{Key: KeyEnableFallDetection, Value: "true"},
	{Key: KeyEnableFightingDetection, Value: "false"},
	{Key: KeyAlertEmailEnabled, Value: "false"},
	{Key: KeyAlertEmailAddress, Value: ""},
	{Key: KeyAlertSMSEnabled, Value: "false"},
	{Key: KeyAlertPhoneNumber, Value: ""},
	{Key: KeyAlertSoundEnabled, Value: "true"},
	{Key: KeyOrganizationName, Value: ""},
	{Key: KeyContactPerson, Value: ""},
	{Key: KeyEmergencyContact, Value: ""},
	{Key: KeySystemLocation, Value: ""},
}

// categoryKey maps a sub-key within a category to the stored key.
type categoryKey struct {
	sub string
	key string
}

var categoryLayout = map[string][]categoryKey{
	CategoryCamera: {
		{"url", KeyCameraURL},
		{"username", KeyCameraUsername},
		{"password", KeyCameraPassword},
		{"location", KeyCameraLocation},
	},
	CategoryDetection: {
		{"confidence_threshold", KeyConfidenceThreshold},
		{"cooldown_seconds", KeyCooldownSeconds},
		{"enable_fall_detection", KeyEnableFallDetection},
		{"enable_fighting_detection", KeyEnableFightingDetection},
	},
	CategoryAlerts: {
		{"email_enabled", KeyAlertEmailEnabled},
		{"email_address", KeyAlertEmailAddress},
		{"sms_enabled", KeyAlertSMSEnabled},
		{"phone_number", KeyAlertPhoneNumber},
		{"sound_enabled", KeyAlertSoundEnabled},
	},
	CategorySystem: {
		{"organization_name", KeyOrganizationName},
		{"contact_person", KeyContactPerson},
		{"emergency_contact", KeyEmergencyContact},
		{"system_location", KeySystemLocation},
	},
}

// defaultValue returns the seed value for key.
func defaultValue(key string) (string, bool) {
	for _, s := range Defaults {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

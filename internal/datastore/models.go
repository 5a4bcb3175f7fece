package datastore

import "time"

// DetectionEvent is a persisted fall or activity detection.
type DetectionEvent struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp     time.Time `gorm:"index;not null" json:"timestamp"`
	DetectionType string    `gorm:"index;size:64;not null" json:"detection_type"`
	Confidence    float64   `json:"confidence"`
	CameraSource  string    `gorm:"size:255" json:"camera_source"`
	// ImageData holds a base64 JPEG snapshot. It is never returned by listings.
	ImageData string `gorm:"size:16777215" json:"-"`
	Notes     string `gorm:"size:4096" json:"notes"`
}

// TableName keeps the table name stable across drivers.
func (DetectionEvent) TableName() string { return "detections" }

// Setting is a single runtime setting stored as text.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"size:4096" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }

// User is an account allowed to sign in to the dashboard.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:32;not null;default:user" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

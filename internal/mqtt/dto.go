package mqtt

import (
	"encoding/json"
	"time"
)

// FallEventDTO is the JSON payload published for a logged fall.
type FallEventDTO struct {
	EventID       uint      `json:"eventId"`
	DetectionType string    `json:"detectionType"`
	Confidence    float64   `json:"confidence"`
	Source        string    `json:"source"`
	Location      string    `json:"location,omitempty"`
	Node          string    `json:"node,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Marshal encodes the payload.
func (d FallEventDTO) Marshal() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

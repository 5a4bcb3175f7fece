package repository

import (
	"context"
	"time"

	"github.com/tphakala/fallwatch/internal/datastore"
)

// EventRepository provides access to the detections table.
type EventRepository interface {
	// Create inserts the event and fills in its ID.
	Create(ctx context.Context, event *datastore.DetectionEvent) error

	// GetByID retrieves an event including its snapshot.
	// Returns ErrEventNotFound if not found.
	GetByID(ctx context.Context, id uint) (*datastore.DetectionEvent, error)

	// List returns at most limit events ordered by timestamp descending,
	// with ID descending as tie breaker. Snapshots are not loaded.
	List(ctx context.Context, limit int) ([]datastore.DetectionEvent, error)

	// Count returns the total number of events.
	Count(ctx context.Context) (int64, error)

	// CountByType returns the number of events per detection type.
	CountByType(ctx context.Context) (map[string]int64, error)

	// CountTypeFold returns the number of events whose lowercased type equals
	// the lowercased detectionType.
	CountTypeFold(ctx context.Context, detectionType string) (int64, error)

	// CountSince returns the number of events with a timestamp at or after since.
	// Timestamps are stored in UTC.
	CountSince(ctx context.Context, since time.Time) (int64, error)

	// DeleteAll removes every event and returns the number removed.
	DeleteAll(ctx context.Context) (int64, error)
}

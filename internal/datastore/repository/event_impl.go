package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/fallwatch/internal/datastore"
)

// eventRepository implements EventRepository.
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *datastore.DetectionEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) GetByID(ctx context.Context, id uint) (*datastore.DetectionEvent, error) {
	var event datastore.DetectionEvent
	err := r.db.WithContext(ctx).First(&event, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) List(ctx context.Context, limit int) ([]datastore.DetectionEvent, error) {
	var events []datastore.DetectionEvent
	err := r.db.WithContext(ctx).
		Omit("image_data").
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *eventRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&datastore.DetectionEvent{}).Count(&count).Error
	return count, err
}

func (r *eventRepository) CountByType(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		DetectionType string
		Count         int64
	}
	err := r.db.WithContext(ctx).Model(&datastore.DetectionEvent{}).
		Select("detection_type, COUNT(*) AS count").
		Group("detection_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.DetectionType] = row.Count
	}
	return counts, nil
}

func (r *eventRepository) CountTypeFold(ctx context.Context, detectionType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&datastore.DetectionEvent{}).
		Where("LOWER(detection_type) = ?", strings.ToLower(detectionType)).
		Count(&count).Error
	return count, err
}

func (r *eventRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&datastore.DetectionEvent{}).
		Where("timestamp >= ?", since.UTC()).
		Count(&count).Error
	return count, err
}

func (r *eventRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&datastore.DetectionEvent{})
	return result.RowsAffected, result.Error
}

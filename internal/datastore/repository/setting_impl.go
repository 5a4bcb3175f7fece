package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/fallwatch/internal/datastore"
)

// settingRepository implements SettingRepository.
type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository.
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(ctx context.Context, key string) (string, error) {
	var setting datastore.Setting
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (r *settingRepository) GetAll(ctx context.Context) ([]datastore.Setting, error) {
	var settings []datastore.Setting
	err := r.db.WithContext(ctx).Order("`key` ASC").Find(&settings).Error
	return settings, err
}

func (r *settingRepository) Update(ctx context.Context, key, value string) error {
	return updateSetting(r.db.WithContext(ctx), key, value)
}

func (r *settingRepository) UpdateMany(ctx context.Context, values map[string]string) (int, error) {
	updated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			err := updateSetting(tx, key, value)
			if errors.Is(err, ErrSettingNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (r *settingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&datastore.Setting{}).Count(&count).Error
	return count, err
}

func (r *settingRepository) InsertIfEmpty(ctx context.Context, defaults []datastore.Setting) (bool, error) {
	inserted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&datastore.Setting{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 || len(defaults) == 0 {
			return nil
		}
		now := time.Now().UTC()
		rows := make([]datastore.Setting, len(defaults))
		for i, s := range defaults {
			rows[i] = datastore.Setting{Key: s.Key, Value: s.Value, UpdatedAt: now}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}

// updateSetting updates a single existing key. A missing row maps to
// ErrSettingNotFound.
func updateSetting(db *gorm.DB, key, value string) error {
	result := db.Model(&datastore.Setting{}).
		Where("`key` = ?", key).
		Updates(map[string]any{"value": value, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}
	return nil
}

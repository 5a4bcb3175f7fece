package repository

import (
	"context"

	"github.com/tphakala/fallwatch/internal/datastore"
)

// SettingRepository provides access to the settings table.
type SettingRepository interface {
	// Get returns the stored value for key.
	// Returns ErrSettingNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// GetAll returns every stored setting.
	GetAll(ctx context.Context) ([]datastore.Setting, error)

	// Update changes the value of an existing key. It never inserts.
	// Returns ErrSettingNotFound if the key does not exist.
	Update(ctx context.Context, key, value string) error

	// UpdateMany updates existing keys in one transaction, skipping unknown
	// keys, and returns the number of keys updated.
	UpdateMany(ctx context.Context, values map[string]string) (int, error)

	// Count returns the number of stored settings.
	Count(ctx context.Context) (int64, error)

	// InsertIfEmpty inserts defaults when the table holds no rows and reports
	// whether anything was inserted.
	InsertIfEmpty(ctx context.Context, defaults []datastore.Setting) (bool, error)
}

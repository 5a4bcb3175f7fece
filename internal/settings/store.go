// Package settings provides the runtime settings store: a flat key/value
// table read by the capture and batch paths on every use, so changes made
// through the API take effect without a restart.
package settings

import (
	"context"
	"strconv"
	"strings"

	"github.com/tphakala/fallwatch/internal/datastore/repository"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/logger"
)

// Store reads and updates runtime settings.
type Store struct {
	repo repository.SettingRepository
}

// NewStore creates a Store backed by repo.
func NewStore(repo repository.SettingRepository) *Store {
	return &Store{repo: repo}
}

// Seed inserts the default settings when the table is empty. It is safe to
// call on every start.
func (s *Store) Seed(ctx context.Context) error {
	inserted, err := s.repo.InsertIfEmpty(ctx, Defaults)
	if err != nil {
		return errors.New(err).
			Component("settings").
			Category(errors.CategoryDatabase).
			Context("operation", "seed").
			Build()
	}
	if inserted {
		GetLogger().Info("seeded default settings", logger.Int("count", len(Defaults)))
	}
	return nil
}

// Get returns the stored value for key, or def when the key is absent or
// cannot be read.
func (s *Store) Get(ctx context.Context, key, def string) string {
	value, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrSettingNotFound) {
			GetLogger().Warn("failed to read setting",
				logger.String("key", key),
				logger.Error(err))
		}
		return def
	}
	return value
}

// GetFloat parses key as a float, returning def on absence or parse failure.
func (s *Store) GetFloat(ctx context.Context, key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s.Get(ctx, key, "")), 64)
	if err != nil {
		return def
	}
	return v
}

// GetInt parses key as an integer, returning def on absence or parse failure.
func (s *Store) GetInt(ctx context.Context, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s.Get(ctx, key, "")))
	if err != nil {
		return def
	}
	return v
}

// GetBool parses key as a boolean, returning def on absence or parse failure.
func (s *Store) GetBool(ctx context.Context, key string, def bool) bool {
	return parseBool(s.Get(ctx, key, ""), def)
}

// Set updates an existing key. It reports false, without inserting, when the
// key is unknown.
func (s *Store) Set(ctx context.Context, key, value string) (bool, error) {
	if isMaskedSecret(key, value) {
		// A public view sent back unchanged keeps the stored secret.
		return true, nil
	}
	err := s.repo.Update(ctx, key, value)
	if errors.Is(err, repository.ErrSettingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.New(err).
			Component("settings").
			Category(errors.CategoryDatabase).
			Context("operation", "set").
			Context("key", key).
			Build()
	}
	GetLogger().Debug("setting updated", logger.String("key", key))
	return true, nil
}

// UpdateMany updates every known key in values and returns how many were
// updated. Unknown keys are skipped.
func (s *Store) UpdateMany(ctx context.Context, values map[string]string) (int, error) {
	writes := make(map[string]string, len(values))
	for k, v := range values {
		if !isMaskedSecret(k, v) {
			writes[k] = v
		}
	}
	updated, err := s.repo.UpdateMany(ctx, writes)
	if err != nil {
		return 0, errors.New(err).
			Component("settings").
			Category(errors.CategoryDatabase).
			Context("operation", "update_many").
			Context("keys", len(values)).
			Build()
	}
	if skipped := len(writes) - updated; skipped > 0 {
		GetLogger().Debug("skipped unknown settings", logger.Int("skipped", skipped))
	}
	return updated, nil
}

// All returns every stored setting as a flat map.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, errors.New(err).
			Component("settings").
			Category(errors.CategoryDatabase).
			Context("operation", "all").
			Build()
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

// SecretMask replaces a stored secret in public views.
const SecretMask = "xxxxx"

// Public is All with the camera password masked and credentials stripped
// from the camera URL. Views served to clients use it.
func (s *Store) Public(ctx context.Context) (map[string]string, error) {
	values, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	redactSecrets(values)
	return values, nil
}

// isMaskedSecret reports whether value is the masked form of a secret
// rather than a new value.
func isMaskedSecret(key, value string) bool {
	switch key {
	case KeyCameraPassword:
		return value == SecretMask
	case KeyCameraURL:
		return strings.Contains(value, ":"+SecretMask+"@")
	default:
		return false
	}
}

func redactSecrets(values map[string]string) {
	if values[KeyCameraPassword] != "" {
		values[KeyCameraPassword] = SecretMask
	}
	if raw := values[KeyCameraURL]; raw != "" {
		values[KeyCameraURL] = RedactURL(raw)
	}
}

// ByCategory groups the public view into the camera, detection, alerts and
// system categories. Keys that are not stored are reported with an empty value.
func (s *Store) ByCategory(ctx context.Context) (map[string]map[string]string, error) {
	values, err := s.Public(ctx)
	if err != nil {
		return nil, err
	}
	return groupByCategory(values), nil
}

func groupByCategory(values map[string]string) map[string]map[string]string {
	grouped := make(map[string]map[string]string, len(categoryLayout))
	for category, keys := range categoryLayout {
		group := make(map[string]string, len(keys))
		for _, k := range keys {
			group[k.sub] = values[k.key]
		}
		grouped[category] = group
	}
	return grouped
}

// Snapshot returns the typed configuration. A failed read falls back to the
// defaults so the capture loop keeps running.
func (s *Store) Snapshot(ctx context.Context) Config {
	values, err := s.All(ctx)
	if err != nil {
		GetLogger().Warn("using default settings, read failed", logger.Error(err))
		return ParseConfig(nil)
	}
	return ParseConfig(values)
}

// ConfidenceThreshold returns the current detection threshold.
func (s *Store) ConfidenceThreshold(ctx context.Context) float64 {
	return ParseConfig(map[string]string{
		KeyConfidenceThreshold: s.Get(ctx, KeyConfidenceThreshold, ""),
	}).ConfidenceThreshold
}

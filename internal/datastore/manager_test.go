package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/errors"
)

func TestOpenSQLiteCreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "falls.db")

	mgr, err := Open(&conf.DatabaseSettings{
		Type:   conf.DatabaseSQLite,
		SQLite: conf.SQLiteSettings{Path: dbPath},
	})
	require.NoError(t, err)
	defer func() { _ = mgr.Close() }()

	assert.Equal(t, dbPath, mgr.Path())
	assert.False(t, mgr.IsMySQL())
	for _, table := range []string{"detections", "settings", "users"} {
		assert.True(t, mgr.DB().Migrator().HasTable(table), table)
	}
}

func TestOpenRejectsUnknownType(t *testing.T) {
	_, err := Open(&conf.DatabaseSettings{Type: "postgres"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = Open(nil)
	require.Error(t, err)
}

func TestNewInMemoryIsIsolated(t *testing.T) {
	a, err := NewInMemory()
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := NewInMemory()
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, a.DB().Create(&Setting{Key: "k", Value: "v"}).Error)

	var count int64
	require.NoError(t, b.DB().Model(&Setting{}).Count(&count).Error)
	assert.Zero(t, count)
}

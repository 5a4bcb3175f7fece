package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/logger"
)

const (
	memoryDSN          = ":memory:"
	slowQueryThreshold = 500 * time.Millisecond
)

// Manager owns the GORM connection and the schema.
type Manager struct {
	db     *gorm.DB
	dbType string
	path   string
}

// Open connects to the database described by cfg and migrates the schema.
func Open(cfg *conf.DatabaseSettings) (*Manager, error) {
	if cfg == nil {
		return nil, errors.Newf("database settings are nil").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	var (
		dialector gorm.Dialector
		location  string
	)

	switch cfg.Type {
	case conf.DatabaseMySQL:
		dialector = mysql.Open(cfg.DSN())
		location = fmt.Sprintf("%s:%d/%s", cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.Database)
	case conf.DatabaseSQLite, "":
		location = cfg.SQLite.Path
		if location != memoryDSN {
			if dir := filepath.Dir(location); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, dbError(err, "create_database_directory", errors.PriorityHigh, "path", location)
				}
			}
		}
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, errors.Newf("unsupported database type %q", cfg.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	m, err := openDialector(dialector, cfg.Type, location, cfg.Debug)
	if err != nil {
		return nil, err
	}

	GetLogger().Info("database opened",
		logger.String("type", m.dbType),
		logger.String("location", m.path))
	return m, nil
}

// NewInMemory opens a private in-memory sqlite database with the schema
// applied. The pool is limited to one connection so every query sees the
// same database.
func NewInMemory() (*Manager, error) {
	return openDialector(sqlite.Open(memoryDSN), conf.DatabaseSQLite, memoryDSN, false)
}

func openDialector(dialector gorm.Dialector, dbType, location string, debug bool) (*Manager, error) {
	gormLogger := logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold)
	if debug {
		gormLogger.WithStatementLevel(logger.LogLevelDebug)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, dbError(err, "open", errors.PriorityCritical, "type", dbType, "location", location)
	}

	if location == memoryDSN {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, dbError(err, "get_sql_db", errors.PriorityHigh)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	m := &Manager{db: db, dbType: dbType, path: location}
	if err := m.Initialize(); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

// Initialize creates or updates the schema.
func (m *Manager) Initialize() error {
	if err := m.db.AutoMigrate(&DetectionEvent{}, &Setting{}, &User{}); err != nil {
		return dbError(err, "auto_migrate", errors.PriorityCritical, "type", m.dbType)
	}
	return nil
}

// DB returns the underlying GORM database.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path or MySQL address.
func (m *Manager) Path() string {
	return m.path
}

// IsMySQL reports whether the manager is connected to MySQL.
func (m *Manager) IsMySQL() bool {
	return m.dbType == conf.DatabaseMySQL
}

// Close closes the database connection.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// Package datastore opens the local device store used for the pending
// sighting queue, the credential store and the session.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/datastore/entities"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// Store wraps the GORM connection.
type Store struct {
	DB      *gorm.DB
	dialect string
	log     logger.Logger
}

// Open connects to the configured backend and migrates the schema.
func Open(settings *conf.DatastoreSettings, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Global().Module("datastore")
	}

	var dialector gorm.Dialector
	switch settings.Type {
	case conf.DatastoreSQLite, "":
		path := settings.SQLite.Path
		if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.New(fmt.Errorf("create database directory: %w", err)).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Build()
			}
		}
		dialector = sqlite.Open(path)
	case conf.DatastoreMySQL:
		m := settings.MySQL
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			m.Username, m.Password, m.Host, m.Port, m.Database)
		dialector = mysql.Open(dsn)
	default:
		return nil, errors.Newf("unsupported datastore type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return OpenDialector(dialector, log)
}

// OpenDialector opens a store on an explicit dialector; tests use sqlite ":memory:".
func OpenDialector(dialector gorm.Dialector, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, slowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open %s database: %w", dialector.Name(), err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	if dialector.Name() == "sqlite" {
		// a single writer avoids SQLITE_BUSY and keeps :memory: databases on one connection
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := db.AutoMigrate(entities.All()...); err != nil {
		return nil, errors.New(fmt.Errorf("auto-migration failed: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("dialect", dialector.Name()).
			Build()
	}

	log.Debug("datastore opened", logger.String("dialect", dialector.Name()))

	return &Store{DB: db, dialect: dialector.Name(), log: log}, nil
}

// Dialect returns the GORM dialect name, e.g. "sqlite" or "mysql".
func (s *Store) Dialect() string {
	return s.dialect
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}

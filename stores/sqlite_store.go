package stores

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteStore implements InteractionStore for SQLite databases.
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(config *StoreConfig) (*SQLiteStore, error) {
	if config.Type != "sqlite" {
		return nil, fmt.Errorf("invalid store type for SQLite store: %s", config.Type)
	}

	store := &SQLiteStore{path: config.Connection}
	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}
	return store, nil
}

// Connect establishes a connection and migrates the schema.
func (s *SQLiteStore) Connect() error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to SQLite database: %w", err)
	}
	s.db = db

	if err := s.db.AutoMigrate(&InteractionRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Ping checks if the database connection is alive.
func (s *SQLiteStore) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Upsert writes a record, replacing any existing row with the same id.
func (s *SQLiteStore) Upsert(record *InteractionRecord) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(record).Error
}

// FetchByStudent retrieves records for one student, newest first.
func (s *SQLiteStore) FetchByStudent(studentID string, limit int) ([]InteractionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var records []InteractionRecord
	query := s.db.Where("student_id = ?", studentID).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch interaction records: %w", err)
	}
	return records, nil
}

// DeleteOlderThan removes records with a timestamp before the cutoff.
func (s *SQLiteStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	res := s.db.Where("timestamp < ?", cutoff).Delete(&InteractionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old interaction records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

package stores

import (
	"time"
)

// InteractionStore abstracts the analytics persistence backend.
type InteractionStore interface {
	// Upsert writes a record keyed by id; an existing row with the same
	// id is overwritten. Intent is append-only, the upsert is defensive.
	Upsert(record *InteractionRecord) error

	// FetchByStudent returns the most recent records for one
	// pseudonymous student id (0 = no limit).
	FetchByStudent(studentID string, limit int) ([]InteractionRecord, error)

	// DeleteOlderThan removes records with a timestamp before the
	// cutoff and reports how many rows went away.
	DeleteOlderThan(cutoff time.Time) (int64, error)

	// Connection management
	Connect() error
	Close() error

	// Health check
	Ping() error
}

// StoreConfig holds configuration for interaction stores.
type StoreConfig struct {
	Type       string            `json:"type"`       // "sqlite", "postgres"
	Connection string            `json:"connection"` // connection string
	Options    map[string]string `json:"options"`
}

// NewStoreConfig creates a new store configuration.
func NewStoreConfig(storeType, connection string) *StoreConfig {
	return &StoreConfig{
		Type:       storeType,
		Connection: connection,
		Options:    make(map[string]string),
	}
}

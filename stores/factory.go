package stores

import (
	"fmt"
)

// NewStore creates an interaction store based on the configuration.
func NewStore(config *StoreConfig) (InteractionStore, error) {
	switch config.Type {
	case "sqlite":
		return NewSQLiteStore(config)
	case "postgres":
		return NewPostgresStore(config)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

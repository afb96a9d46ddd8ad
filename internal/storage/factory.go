package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stratsim/engine/internal/config"
	"github.com/stratsim/engine/internal/storage/gormstore"
	"github.com/stratsim/engine/internal/storage/memory"
)

// NewBackend creates a storage backend based on configuration.
// "sqlite" and "postgres" share the gorm store; the database manager
// handles driver selection and fallback.
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres", "sqlite":
		return gormstore.New(log), nil
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

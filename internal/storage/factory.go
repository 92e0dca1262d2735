package storage

import (
	"fmt"

	"github.com/OCAP2/lobbyhost/internal/config"
	"github.com/OCAP2/lobbyhost/internal/database"
	"github.com/OCAP2/lobbyhost/internal/storage/file"
	gormstorage "github.com/OCAP2/lobbyhost/internal/storage/gorm"
	"github.com/OCAP2/lobbyhost/internal/storage/memory"
)

// NewBackend creates a storage backend based on configuration.
// The sqlite and postgres types open their connection through dbm.
func NewBackend(cfg config.StorageConfig, dbm *database.Manager) (Backend, error) {
	switch cfg.Type {
	case "file", "":
		return file.New(cfg.File), nil
	case "memory":
		return memory.New(cfg.Memory.MaxLaunches), nil
	case "sqlite", "postgres":
		if dbm == nil {
			return nil, fmt.Errorf("%s backend needs a database manager", cfg.Type)
		}
		if err := dbm.Connect(cfg); err != nil {
			return nil, fmt.Errorf("connecting %s backend: %w", cfg.Type, err)
		}
		return gormstorage.New(dbm.DB), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

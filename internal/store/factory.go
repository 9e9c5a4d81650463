package store

import (
	"fmt"
	"path/filepath"

	"github.com/abhibansal60/led-catalog/internal/catalog"
	"github.com/abhibansal60/led-catalog/internal/config"
)

// NewStoreFromConfig creates a catalog.Store based on the store config type.
func NewStoreFromConfig(cfg config.StoreConfig) (catalog.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "catalog.db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

package store

import (
	"context"
	"fmt"

	"github.com/ubuygold/keygate/internal/config"
)

// Open builds the store selected by cfg.Type.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Type {
	case config.StoreFile:
		s, err = OpenFile(cfg.Path)
	case config.StoreMemory:
		s = NewMemoryStore()
	case config.StoreRedis:
		s, err = OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key)
	case config.StoreDatabase:
		s, err = OpenDatabase(cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

package storage

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/subscout/subreddit-analyzer/internal/config"
)

// New creates the storage backend selected by cfg.StorageBackend. rdb is
// only used by the redis backend and may be nil otherwise.
func New(cfg *config.Config, rdb *redis.Client) (StorageInterface, error) {
	switch cfg.StorageBackend {
	case "azure":
		return NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis storage requires a redis client")
		}
		return NewRedisStorage(rdb, cfg.ReportTTL), nil
	case "local", "":
		return NewLocalStorage(cfg.LocalStorageDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

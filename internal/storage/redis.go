package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStorage keeps report blobs as plain string values, optionally expiring them
type RedisStorage struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// Ensure RedisStorage implements StorageInterface
var _ StorageInterface = (*RedisStorage)(nil)

// NewRedisClient connects to Redis and verifies the connection with a ping
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return rdb, nil
}

// NewRedisStorage stores objects under "subscout:<key>". A ttl of zero keeps them forever.
func NewRedisStorage(rdb *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		rdb:       rdb,
		keyPrefix: "subscout:",
		ttl:       ttl,
	}
}

func (s *RedisStorage) Store(filename string, data []byte) error {
	if err := s.rdb.Set(context.Background(), s.keyPrefix+filename, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store %s in redis: %w", filename, err)
	}

	logrus.Infof("Stored %s in Redis (%d bytes)", filename, len(data))
	return nil
}

func (s *RedisStorage) Retrieve(filename string) ([]byte, error) {
	data, err := s.rdb.Get(context.Background(), s.keyPrefix+filename).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("failed to read %s from redis: %w", filename, err)
	}
	return data, nil
}

// List scans for keys under prefix; order is not defined
func (s *RedisStorage) List(prefix string) ([]string, error) {
	ctx := context.Background()

	var names []string
	iter := s.rdb.Scan(ctx, 0, s.keyPrefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, iter.Val()[len(s.keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list redis keys: %w", err)
	}

	return names, nil
}

func (s *RedisStorage) Delete(filename string) error {
	if err := s.rdb.Del(context.Background(), s.keyPrefix+filename).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", filename, err)
	}

	logrus.Infof("Deleted %s from Redis", filename)
	return nil
}

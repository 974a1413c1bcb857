// Package redis backs the blob tier with Redis.
package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/jrsteele09/repo-dashboard/cache"
	"github.com/jrsteele09/repo-dashboard/internal/errors"
)

// Store writes blobs without expiry; every refresh replaces them.
type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ cache.BlobStore = (*Store)(nil)

func New(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

// Open parses a redis:// URL and checks connectivity.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrapf(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "ping redis")
	}
	return rdb, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.Wrapf(errors.ErrNotFound, "blob %q", key)
		}
		return nil, errors.Wrapf(err, "redis get %q", key)
	}
	return v, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return errors.Wrapf(s.rdb.Set(ctx, s.prefix+key, value, 0).Err(), "redis set %q", key)
}

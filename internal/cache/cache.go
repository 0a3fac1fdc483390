/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/jerry-enebeli/faxline/config"
	redis_db "github.com/jerry-enebeli/faxline/internal/redis-db"
	"github.com/redis/go-redis/v9"
)

// Cache stores short-lived derived data such as per-destination send
// statistics. A miss is not an error.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get decodes the cached value into data and reports whether the key was present.
	Get(ctx context.Context, key string, data interface{}) (bool, error)

	Delete(ctx context.Context, key string) error
}

// RedisCache keeps entries in Redis with a TinyLFU in-process layer in front.
type RedisCache struct {
	cache *cache.Cache
}

// localCacheSize bounds the in-process layer.
const localCacheSize = 10000

// NewCache connects using the configured Redis DNS.
func NewCache() (Cache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	client, err := redis_db.NewRedisClient(redis_db.SplitAddresses(cfg.Redis.Dns), cfg.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	return New(client.Client(), time.Minute), nil
}

// New wraps an existing client. localTTL caps how long the in-process layer
// may serve an entry without consulting Redis.
func New(client redis.UniversalClient, localTTL time.Duration) *RedisCache {
	return &RedisCache{cache: cache.New(&cache.Options{
		Redis:      client,
		LocalCache: cache.NewTinyLFU(localCacheSize, localTTL),
	})}
}

func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) (bool, error) {
	err := r.cache.Get(ctx, key, data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	err := r.cache.Delete(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

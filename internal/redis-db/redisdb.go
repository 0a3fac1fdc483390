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

// Package redis_db builds the Redis clients shared by the job lock, the
// destination statistics cache and the dispatch queue.
package redis_db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Redis struct {
	addresses []string
	client    redis.UniversalClient
}

// ParseRedisURL accepts docker style "host:port" addresses as well as full
// redis:// and rediss:// URLs, including password-only userinfo.
func ParseRedisURL(rawURL string, skipTLSVerify bool) (*redis.Options, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if !strings.Contains(rawURL, "//") && !strings.Contains(rawURL, "@") {
		return &redis.Options{Addr: rawURL}, nil
	}

	// redis://secret@host:6379 means a password, not a username
	if strings.HasPrefix(rawURL, "redis://") && strings.Contains(rawURL, "@") {
		userinfo, host, _ := strings.Cut(strings.TrimPrefix(rawURL, "redis://"), "@")
		if !strings.Contains(userinfo, ":") {
			rawURL = fmt.Sprintf("redis://:%s@%s", userinfo, host)
		}
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.TLSConfig != nil && skipTLSVerify {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return opts, nil
}

// SplitAddresses turns a comma separated DNS setting into cluster addresses.
func SplitAddresses(dns string) []string {
	var out []string
	for _, part := range strings.Split(dns, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NewRedisClient connects to a single instance when one address is given and
// to a cluster otherwise, then pings it.
func NewRedisClient(addresses []string, skipTLSVerify bool) (*Redis, error) {
	if len(addresses) == 0 {
		return nil, errors.New("redis addresses list cannot be empty")
	}

	var client redis.UniversalClient
	if len(addresses) == 1 {
		opts, err := ParseRedisURL(addresses[0], skipTLSVerify)
		if err != nil {
			return nil, err
		}
		client = redis.NewClient(opts)
	} else {
		cluster := &redis.UniversalOptions{}
		for _, addr := range addresses {
			opts, err := ParseRedisURL(addr, skipTLSVerify)
			if err != nil {
				return nil, err
			}
			cluster.Addrs = append(cluster.Addrs, opts.Addr)
			if cluster.Password == "" {
				cluster.Password = opts.Password
			}
			if opts.TLSConfig != nil && cluster.TLSConfig == nil {
				cluster.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: skipTLSVerify} //nolint:gosec
			}
		}
		client = redis.NewUniversalClient(cluster)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{addresses: addresses, client: client}, nil
}

func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// AsynqOpt derives the queue's connection settings from the same DNS string
// so the dispatch queue and the lock always talk to one Redis.
func AsynqOpt(dns string, skipTLSVerify bool) (asynq.RedisClientOpt, error) {
	addresses := SplitAddresses(dns)
	if len(addresses) == 0 {
		return asynq.RedisClientOpt{}, errors.New("redis addresses list cannot be empty")
	}
	opts, err := ParseRedisURL(addresses[0], skipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	cacheSize     = 128
	defaultPrefix = "reconciler"
)

// RedisStore keeps sections in Redis behind a small in-process TinyLFU cache.
// The names of saved sections are tracked in a Redis set so ClearAll can
// find them.
type RedisStore struct {
	client *redis.Client
	cache  *cache.Cache
	prefix string
	ttl    time.Duration
	logger *logrus.Entry
}

// NewRedisStore connects to dns, which may be a bare host:port or a redis:// URL.
// A zero ttl keeps sections until they are cleared.
func NewRedisStore(dns, prefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := parseRedisURL(dns)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	// go-redis/cache falls back to one hour for a zero TTL; a negative one
	// means no expiry.
	if ttl <= 0 {
		ttl = -1
	}
	client := redis.NewClient(opts)
	return &RedisStore{
		client: client,
		cache: cache.New(&cache.Options{
			Redis:      client,
			LocalCache: cache.NewTinyLFU(cacheSize, time.Minute),
		}),
		prefix: prefix,
		ttl:    ttl,
		logger: logrus.WithField("component", "cache"),
	}, nil
}

func parseRedisURL(dns string) (*redis.Options, error) {
	dns = strings.TrimSpace(dns)
	if dns == "" {
		return nil, errors.New("redis address is empty")
	}
	if !strings.Contains(dns, "://") {
		return &redis.Options{Addr: dns}, nil
	}
	opts, err := redis.ParseURL(dns)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":section:" + name
}

func (s *RedisStore) namesKey() string {
	return s.prefix + ":sections"
}

// Save stores the encoded section. go-redis/cache keeps []byte values as is.
func (s *RedisStore) Save(ctx context.Context, name string, v interface{}) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, s.namesKey(), name).Err(); err != nil {
		return fmt.Errorf("track section %s: %w", name, err)
	}
	err = s.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   s.key(name),
		Value: b,
		TTL:   s.ttl,
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, name string, dst interface{}) (bool, error) {
	var b []byte
	err := s.cache.Get(ctx, s.key(name), &b)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", name, err)
	}
	if err := decode(name, b, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return fmt.Errorf("list sections: %w", err)
	}
	for _, name := range names {
		if err := s.cache.Delete(ctx, s.key(name)); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	if err := s.client.Del(ctx, s.namesKey()).Err(); err != nil {
		return fmt.Errorf("clear section index: %w", err)
	}
	s.logger.Infof("cleared %d sections", len(names))
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

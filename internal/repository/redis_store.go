package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	drepo "TIKR/internal/domain/repository"
)

// RedisStore implements DocumentStore on Redis hashes. Every document is one
// hash keyed "<prefix>:<collection>:<key>", with each top-level field stored
// as a JSON-encoded hash field. HSET touches only the supplied fields, which
// gives the partial-merge write semantics callers rely on.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ drepo.DocumentStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis document store client.
func NewRedisStore(opts ...RedisOption) (*RedisStore, error) {
	cfg := &RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 5,
		Prefix:       "tikr",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.Prefix,
	}, nil
}

// Client returns the underlying redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Get(ctx context.Context, collection, key string, dest interface{}) error {
	fields, err := s.client.HGetAll(ctx, s.wrapKey(collection, key)).Result()
	if err != nil {
		return s.mapErr(err)
	}
	// HGETALL of a missing key yields an empty map, not an error.
	if len(fields) == 0 {
		return drepo.ErrNotFound
	}

	doc := make(map[string]json.RawMessage, len(fields))
	for name, raw := range fields {
		doc[name] = json.RawMessage(raw)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("assemble document %s/%s: %w", collection, key, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("decode document %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *RedisStore) Merge(ctx context.Context, collection, key string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	vals := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", name, err)
		}
		vals[name] = string(b)
	}

	if err := s.client.HSet(ctx, s.wrapKey(collection, key), vals).Err(); err != nil {
		return s.mapErr(err)
	}
	return nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) wrapKey(collection, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, collection, key)
}

// mapErr translates Redis auth/ACL failures to the permission sentinel so the
// cache manager can distrust the whole read, keeping other errors intact.
func (s *RedisStore) mapErr(err error) error {
	msg := err.Error()
	if strings.HasPrefix(msg, "NOPERM") || strings.HasPrefix(msg, "NOAUTH") || strings.HasPrefix(msg, "WRONGPASS") {
		return fmt.Errorf("%w: %s", drepo.ErrPermissionDenied, msg)
	}
	return err
}

// RedisOption configures the Redis store.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

// WithRedisAddr sets the Redis address.
func WithRedisAddr(addr string) RedisOption {
	return func(c *RedisConfig) {
		c.Addr = addr
	}
}

// WithRedisAuth sets password and database number.
func WithRedisAuth(password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
		c.DB = db
	}
}

// WithRedisPool sets connection pool settings.
func WithRedisPool(poolSize, minIdleConns int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
		if timeout > 0 {
			c.PoolTimeout = timeout
		}
	}
}

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		c.Prefix = prefix
	}
}

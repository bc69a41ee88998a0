package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"approval-ledger/pkg/cache"
	"approval-ledger/pkg/store"

	"github.com/redis/rueidis"
)

// RedisCache is a shared record cache. Documents are stored as JSON strings
// with SET EX, so entries written by one instance are visible to all.
type RedisCache struct {
	client rueidis.Client
	name   string
	config RedisCacheConfig
	ttl    cache.LayerConfig
}

type RedisCacheConfig struct {
	Name string
	// Addr is the Redis server address for single node mode.
	// Examples: "localhost:6379", "redis.example.com:6379"
	Addr string
	// ClusterAddrs enables cluster mode when set.
	ClusterAddrs []string
	Username     string
	Password     string
	// DB is the Redis database number. Cluster mode only supports 0.
	DB           int
	KeyPrefix    string
	DefaultTTL   time.Duration
	MaxTTL       time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// Sentinel configuration for high availability
	SentinelMasterSet string
	SentinelAddrs     []string
	SentinelUsername  string
	SentinelPassword  string
}

func DefaultRedisCacheConfig() RedisCacheConfig {
	return RedisCacheConfig{
		Name:         "redis",
		Addr:         "localhost:6379",
		KeyPrefix:    "ledger:",
		DefaultTTL:   5 * time.Minute,
		MaxTTL:       time.Hour,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// clientOption translates the config into rueidis options.
func (c RedisCacheConfig) clientOption() (rueidis.ClientOption, error) {
	var initAddress []string
	switch {
	case len(c.ClusterAddrs) > 0:
		initAddress = c.ClusterAddrs
	case len(c.SentinelAddrs) > 0:
		initAddress = c.SentinelAddrs
	case c.Addr != "":
		initAddress = []string{c.Addr}
	default:
		return rueidis.ClientOption{}, fmt.Errorf("redis: no addresses configured (set Addr, ClusterAddrs, or SentinelAddrs)")
	}

	opt := rueidis.ClientOption{
		InitAddress:      initAddress,
		Username:         c.Username,
		Password:         c.Password,
		SelectDB:         c.DB,
		ConnWriteTimeout: c.WriteTimeout,
		MaxFlushDelay:    100 * time.Microsecond,
	}
	if len(c.SentinelAddrs) > 0 {
		opt.Sentinel = rueidis.SentinelOption{
			MasterSet: c.SentinelMasterSet,
			Username:  c.SentinelUsername,
			Password:  c.SentinelPassword,
		}
	}
	return opt, nil
}

func NewRedisCache(config RedisCacheConfig) (*RedisCache, error) {
	if config.Name == "" {
		config.Name = "redis"
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	ttl := cache.LayerConfig{Name: config.Name, DefaultTTL: config.DefaultTTL, MaxTTL: config.MaxTTL}
	if err := ttl.Validate(); err != nil {
		return nil, err
	}

	clientOpts, err := config.clientOption()
	if err != nil {
		return nil, err
	}

	client, err := rueidis.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return &RedisCache{
		client: client,
		name:   config.Name,
		config: config,
		ttl:    ttl,
	}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (store.Document, error) {
	if err := cache.ValidateKey(key); err != nil {
		return nil, err
	}

	resp := r.client.Do(ctx, r.client.B().Get().Key(r.config.KeyPrefix+key).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	data, err := resp.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("redis get: failed to read response: %w", err)
	}

	return decodeDocument(data)
}

func (r *RedisCache) Set(ctx context.Context, key string, doc store.Document, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redis set: failed to marshal: %w", err)
	}

	cmd := r.client.B().Set().Key(r.config.KeyPrefix + key).Value(string(data)).Ex(r.ttl.EffectiveTTL(ttl)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	if err := r.client.Do(ctx, r.client.B().Del().Key(r.config.KeyPrefix+key).Build()).Error(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}

	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *RedisCache) Name() string {
	return r.name
}

func (r *RedisCache) Close() error {
	r.client.Close()
	return nil
}

// decodeDocument keeps numbers as json.Number so amounts are not rounded
// through float64.
func decodeDocument(data []byte) (store.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc store.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("redis get: failed to unmarshal: %w", err)
	}
	return doc, nil
}

// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"approval-ledger/pkg/logging"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Upload backends.
const (
	UploadLocal = "local"
	UploadGCS   = "gcs"
)

// Cache layers.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Mongo    MongoConfig
	Cache    CacheConfig
	Upload   UploadConfig
	Log      LogConfig

	// StrictTransitions rejects re-deciding a terminal record
	StrictTransitions bool
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

type StoreConfig struct {
	Backend string
	// Timeout bounds each store call
	Timeout time.Duration
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type MongoConfig struct {
	URI      string
	Database string
}

type CacheConfig struct {
	Enabled       bool
	TTL           time.Duration
	MemoryMaxSize int
	// RedisAddr replaces the in-process layer with Redis when set
	RedisAddr     string
	RedisPassword string
}

// Layers lists the cache layers to put in front of the store. Redis
// implies several instances sharing the store; an in-process layer there
// would keep serving records another instance has since changed.
func (c CacheConfig) Layers() []string {
	if !c.Enabled {
		return nil
	}
	if c.RedisAddr != "" {
		return []string{CacheRedis}
	}
	return []string{CacheMemory}
}

type UploadConfig struct {
	Backend   string
	Dir       string
	GCSBucket string
	GCSPrefix string
}

type LogConfig struct {
	Level       string
	Format      string
	Development bool
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		Store: StoreConfig{Backend: StoreMemory, Timeout: 5 * time.Second},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Database: "approval_ledger",
			SSLMode:  "disable",
		},
		Mongo: MongoConfig{URI: "mongodb://localhost:27017", Database: "approval_ledger"},
		Cache: CacheConfig{TTL: 5 * time.Minute, MemoryMaxSize: 10000},
		Upload: UploadConfig{
			Backend:   UploadLocal,
			Dir:       "uploads/userDeposit",
			GCSPrefix: "deposits",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the given .env files (default ".env"), then the environment.
// Missing files are ignored; variables already set win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := Default()
	p := &parser{}

	cfg.HTTP.Port = p.str("PORT", cfg.HTTP.Port)
	cfg.HTTP.ReadTimeout = p.duration("HTTP_READ_TIMEOUT", cfg.HTTP.ReadTimeout)
	cfg.HTTP.WriteTimeout = p.duration("HTTP_WRITE_TIMEOUT", cfg.HTTP.WriteTimeout)
	cfg.HTTP.CORSOrigins = p.list("CORS_ORIGINS", cfg.HTTP.CORSOrigins)

	cfg.Store.Backend = strings.ToLower(p.str("STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.Timeout = p.duration("STORE_TIMEOUT", cfg.Store.Timeout)

	cfg.Postgres.Host = p.str("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = p.integer("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = p.str("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = p.str("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Database = p.str("POSTGRES_DB", cfg.Postgres.Database)
	cfg.Postgres.SSLMode = p.str("POSTGRES_SSLMODE", cfg.Postgres.SSLMode)

	cfg.Mongo.URI = p.str("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.Database = p.str("MONGO_DATABASE", cfg.Mongo.Database)

	cfg.Cache.Enabled = p.boolean("CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.TTL = p.duration("CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.MemoryMaxSize = p.integer("CACHE_MEMORY_MAX_SIZE", cfg.Cache.MemoryMaxSize)
	cfg.Cache.RedisAddr = p.str("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = p.str("REDIS_PASSWORD", cfg.Cache.RedisPassword)

	cfg.Upload.Backend = strings.ToLower(p.str("UPLOAD_BACKEND", cfg.Upload.Backend))
	cfg.Upload.Dir = p.str("UPLOAD_DIR", cfg.Upload.Dir)
	cfg.Upload.GCSBucket = p.str("GCS_BUCKET", cfg.Upload.GCSBucket)
	cfg.Upload.GCSPrefix = p.str("GCS_PREFIX", cfg.Upload.GCSPrefix)

	cfg.StrictTransitions = p.boolean("STRICT_TRANSITIONS", cfg.StrictTransitions)

	cfg.Log.Development = p.boolean("LOG_DEV", cfg.Log.Development)
	if cfg.Log.Development {
		cfg.Log.Level, cfg.Log.Format = "debug", "console"
	}
	cfg.Log.Level = p.str("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = p.str("LOG_FORMAT", cfg.Log.Format)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	var errs []error

	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	switch c.Store.Backend {
	case StoreMemory, StorePostgres:
	case StoreMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not one of memory, postgres, mongo", c.Store.Backend))
	}
	if c.Store.Timeout < 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must not be negative"))
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive when the cache is enabled"))
	}
	if c.Cache.MemoryMaxSize < 0 {
		errs = append(errs, errors.New("CACHE_MEMORY_MAX_SIZE must not be negative"))
	}
	switch c.Upload.Backend {
	case UploadLocal:
	case UploadGCS:
		if c.Upload.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for the gcs upload backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("UPLOAD_BACKEND %q is not one of local, gcs", c.Upload.Backend))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not one of json, console", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	base := logging.DefaultConfig()
	if c.Log.Development {
		base = logging.DevelopmentConfig()
	}
	base.Level = c.Log.Level
	base.Format = c.Log.Format
	base.Development = c.Log.Development
	return base
}

type parser struct {
	errs []error
}

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) list(key string, def []string) []string {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

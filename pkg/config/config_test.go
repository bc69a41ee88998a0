package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.HTTP.Port)
	}
	if cfg.Store.Backend != StoreMemory {
		t.Errorf("Expected memory backend, got %s", cfg.Store.Backend)
	}
	if cfg.Upload.Dir != "uploads/userDeposit" {
		t.Errorf("Unexpected upload dir %s", cfg.Upload.Dir)
	}
	if cfg.StrictTransitions {
		t.Error("Strict transitions should be off by default")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("STRICT_TRANSITIONS", "1")

	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != "9090" || cfg.Store.Backend != StorePostgres || cfg.Postgres.Port != 6543 {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.Store.Timeout != 2*time.Second || cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Unexpected durations %v %v", cfg.Store.Timeout, cfg.Cache.TTL)
	}
	if !cfg.Cache.Enabled || cfg.Cache.RedisAddr != "redis:6379" {
		t.Errorf("Unexpected cache config %+v", cfg.Cache)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://b.test" {
		t.Errorf("Unexpected CORS origins %v", cfg.HTTP.CORSOrigins)
	}
	if !cfg.StrictTransitions {
		t.Error("Expected strict transitions")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "MONGO_DATABASE=from_file\nPORT=7070\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	// the environment wins over the file
	t.Setenv("PORT", "9191")
	// godotenv sets variables for the rest of the process
	t.Setenv("MONGO_DATABASE", "")
	os.Unsetenv("MONGO_DATABASE")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mongo.Database != "from_file" {
		t.Errorf("Expected database from file, got %s", cfg.Mongo.Database)
	}
	if cfg.HTTP.Port != "9191" {
		t.Errorf("Expected environment port, got %s", cfg.HTTP.Port)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{"STORE_TIMEOUT": "soon"}, "STORE_TIMEOUT"},
		{"bad bool", map[string]string{"CACHE_ENABLED": "maybe"}, "CACHE_ENABLED"},
		{"bad backend", map[string]string{"STORE_BACKEND": "sqlite"}, "STORE_BACKEND"},
		{"gcs without bucket", map[string]string{"UPLOAD_BACKEND": "gcs"}, "GCS_BUCKET"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "unknown level"},
		{"bad format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(missingEnvFile(t))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}

func TestConfig_Logging(t *testing.T) {
	t.Setenv("LOG_DEV", "true")

	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	lc := cfg.Logging()
	if lc.Level != "debug" || lc.Format != "console" || !lc.Development {
		t.Errorf("Unexpected development logging config %+v", lc)
	}
}

func TestCacheConfig_Layers(t *testing.T) {
	tests := []struct {
		name string
		cfg  CacheConfig
		want []string
	}{
		{"disabled", CacheConfig{RedisAddr: "redis:6379"}, nil},
		{"single instance", CacheConfig{Enabled: true}, []string{CacheMemory}},
		{"shared redis", CacheConfig{Enabled: true, RedisAddr: "redis:6379"}, []string{CacheRedis}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.Layers()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Expected layers %v, got %v", tt.want, got)
			}
		})
	}
}

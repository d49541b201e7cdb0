package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the cloudsync service.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
	NATS    NATSConfig    `yaml:"nats"`
	Auth    AuthConfig    `yaml:"auth"`
	Sync    SyncConfig    `yaml:"sync"`
}

type StorageConfig struct {
	// Driver selects the backend: "mongo", "sqlite" or "memory".
	Driver       string `yaml:"driver"`
	MongoURI     string `yaml:"mongo_uri"`
	DatabaseName string `yaml:"database_name"`
	SQLitePath   string `yaml:"sqlite_path"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

type NATSConfig struct {
	// Enabled turns on the JetStream change feed. When off, applied
	// operations are only broadcast in-process.
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type AuthConfig struct {
	// Enabled requires a Bearer token on sync endpoints and pins the push
	// origin to the token subject.
	Enabled        bool   `yaml:"enabled"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

type SyncConfig struct {
	// PageSize caps the number of outbox records returned per pull.
	PageSize int `yaml:"page_size"`
}

// LoadConfig builds the configuration in layers: defaults, then
// config/config.yml, then config/config.local.yml, then environment
// variables. Later layers win.
func LoadConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			Driver:       "mongo",
			MongoURI:     "mongodb://localhost:27017",
			DatabaseName: "cloudsync",
			SQLitePath:   "cloudsync.db",
		},
		API: APIConfig{
			Port: 8080,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://localhost:4222",
		},
		Auth: AuthConfig{
			Enabled:        false,
			PrivateKeyPath: "config/cloudsync.pem",
		},
		Sync: SyncConfig{
			PageSize: 200,
		},
	}

	loadFile(cfg, "config/config.yml")
	loadFile(cfg, "config/config.local.yml")
	loadEnv(cfg)

	return cfg
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[Warn] Failed to parse %s: %v", path, err)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Storage.MongoURI = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Storage.DatabaseName = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.Enabled = true
		cfg.NATS.URL = v
	}
	if v := os.Getenv("SYNC_PAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size > 0 {
			cfg.Sync.PageSize = size
		}
	}
	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Enabled = enabled
		}
	}
	if v := os.Getenv("AUTH_PRIVATE_KEY"); v != "" {
		cfg.Auth.PrivateKeyPath = v
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/SmitUplenchwar2687/Tempo/pkg/breaker"
	"github.com/SmitUplenchwar2687/Tempo/pkg/storage"
)

// Backend names for the outcome store.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the top-level configuration for a Tempo session.
type Config struct {
	Server  ServerConfig   `json:"server"`
	Breaker breaker.Config `json:"breaker"`
	Storage StorageConfig  `json:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// StorageConfig selects and configures the outcome store backend.
type StorageConfig struct {
	Backend string              `json:"backend"`
	Redis   storage.RedisConfig `json:"redis"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Breaker: breaker.Config{
			FailureThreshold: 0.5,
			MinSamples:       5,
			Window:           time.Minute,
			Cooldown:         30 * time.Second,
			HalfOpenProbes:   1,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Redis: storage.RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
	}
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if err := c.Breaker.Validate(); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Storage.Redis.Cluster {
			if len(c.Storage.Redis.ClusterNodes) == 0 {
				return fmt.Errorf("redis cluster mode requires cluster_nodes")
			}
		} else {
			if c.Storage.Redis.Host == "" {
				return fmt.Errorf("redis host is required")
			}
			if c.Storage.Redis.Port <= 0 {
				return fmt.Errorf("redis port must be positive, got %d", c.Storage.Redis.Port)
			}
		}
	default:
		return fmt.Errorf("unknown storage backend %q, must be one of: memory, redis", c.Storage.Backend)
	}
	return nil
}

// NewStorage builds the configured outcome store.
func (c Config) NewStorage() (storage.Storage, error) {
	switch c.Storage.Backend {
	case BackendRedis:
		redisCfg := c.Storage.Redis
		return storage.NewRedisStorage(&redisCfg)
	default:
		return storage.NewMemoryStorage(), nil
	}
}

// LoadFile reads a JSON config file and merges it with defaults.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Use a raw intermediate struct to handle duration parsing.
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if raw.Server.Addr != "" {
		cfg.Server.Addr = raw.Server.Addr
	}
	if raw.Breaker.FailureThreshold > 0 {
		cfg.Breaker.FailureThreshold = raw.Breaker.FailureThreshold
	}
	if raw.Breaker.MinSamples > 0 {
		cfg.Breaker.MinSamples = raw.Breaker.MinSamples
	}
	if raw.Breaker.Window != "" {
		d, err := time.ParseDuration(raw.Breaker.Window)
		if err != nil {
			return cfg, fmt.Errorf("parsing breaker.window: %w", err)
		}
		cfg.Breaker.Window = d
	}
	if raw.Breaker.Cooldown != "" {
		d, err := time.ParseDuration(raw.Breaker.Cooldown)
		if err != nil {
			return cfg, fmt.Errorf("parsing breaker.cooldown: %w", err)
		}
		cfg.Breaker.Cooldown = d
	}
	if raw.Breaker.HalfOpenProbes > 0 {
		cfg.Breaker.HalfOpenProbes = raw.Breaker.HalfOpenProbes
	}
	if raw.Breaker.NodeID != "" {
		cfg.Breaker.NodeID = raw.Breaker.NodeID
	}
	if raw.Storage.Backend != "" {
		cfg.Storage.Backend = raw.Storage.Backend
	}
	if raw.Storage.Redis.Host != "" {
		cfg.Storage.Redis.Host = raw.Storage.Redis.Host
	}
	if raw.Storage.Redis.Port > 0 {
		cfg.Storage.Redis.Port = raw.Storage.Redis.Port
	}
	if raw.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = raw.Storage.Redis.Password
	}
	if raw.Storage.Redis.DB > 0 {
		cfg.Storage.Redis.DB = raw.Storage.Redis.DB
	}
	if raw.Storage.Redis.PoolSize > 0 {
		cfg.Storage.Redis.PoolSize = raw.Storage.Redis.PoolSize
	}
	if raw.Storage.Redis.MaxRetries > 0 {
		cfg.Storage.Redis.MaxRetries = raw.Storage.Redis.MaxRetries
	}
	if raw.Storage.Redis.DialTimeout != "" {
		d, err := time.ParseDuration(raw.Storage.Redis.DialTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parsing storage.redis.dial_timeout: %w", err)
		}
		cfg.Storage.Redis.DialTimeout = d
	}
	if raw.Storage.Redis.Cluster {
		cfg.Storage.Redis.Cluster = true
	}
	if len(raw.Storage.Redis.ClusterNodes) > 0 {
		cfg.Storage.Redis.ClusterNodes = raw.Storage.Redis.ClusterNodes
	}

	return cfg, nil
}

// rawConfig is the JSON-friendly representation with string durations.
type rawConfig struct {
	Server struct {
		Addr string `json:"addr"`
	} `json:"server"`
	Breaker struct {
		FailureThreshold float64 `json:"failure_threshold"`
		MinSamples       int64   `json:"min_samples"`
		Window           string  `json:"window"`
		Cooldown         string  `json:"cooldown"`
		HalfOpenProbes   int     `json:"half_open_probes"`
		NodeID           string  `json:"node_id"`
	} `json:"breaker"`
	Storage struct {
		Backend string `json:"backend"`
		Redis   struct {
			Host         string   `json:"host"`
			Port         int      `json:"port"`
			Password     string   `json:"password"`
			DB           int      `json:"db"`
			PoolSize     int      `json:"pool_size"`
			MaxRetries   int      `json:"max_retries"`
			DialTimeout  string   `json:"dial_timeout"`
			Cluster      bool     `json:"cluster"`
			ClusterNodes []string `json:"cluster_nodes"`
		} `json:"redis"`
	} `json:"storage"`
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	example := `{
  "server": {
    "addr": ":8080"
  },
  "breaker": {
    "failure_threshold": 0.5,
    "min_samples": 5,
    "window": "1m",
    "cooldown": "30s",
    "half_open_probes": 1
  },
  "storage": {
    "backend": "memory"
  }
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}

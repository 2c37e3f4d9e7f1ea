// Package config loads service configuration from defaults, an optional
// YAML file and TAPNOTIFY_ prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/layer-3/tapnotify/internal/log"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nested keys: TAPNOTIFY_HTTP__ADDR sets http.addr.
const EnvPrefix = "TAPNOTIFY_"

const (
	LedgerMemory = "memory"
	LedgerNessie = "nessie"

	EventsDirect = "direct"
	EventsRedis  = "redis"
)

// Config is the root configuration
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Keys     KeysConfig     `koanf:"keys"`
	Registry RegistryConfig `koanf:"registry"`
	Ledger   LedgerConfig   `koanf:"ledger"`
	Events   EventsConfig   `koanf:"events"`
	Log      log.Config     `koanf:"log"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ChallengeRate   float64       `koanf:"challenge_rate"`
	ChallengeBurst  int           `koanf:"challenge_burst"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

type KeysConfig struct {
	PrivateKeyPath string `koanf:"private_key_path"`
	PublicKeyPath  string `koanf:"public_key_path"`
}

type RegistryConfig struct {
	SendTimeout          time.Duration `koanf:"send_timeout"`
	BroadcastConcurrency int           `koanf:"broadcast_concurrency"`
}

type LedgerConfig struct {
	Driver  string        `koanf:"driver"`
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

type EventsConfig struct {
	Driver   string `koanf:"driver"`
	RedisURL string `koanf:"redis_url"`
	Topic    string `koanf:"topic"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":9000",
			ChallengeRate:   5,
			ChallengeBurst:  10,
			ShutdownTimeout: 10 * time.Second,
		},
		Keys: KeysConfig{
			PrivateKeyPath: "keys/private.pem",
			PublicKeyPath:  "keys/public.pem",
		},
		Registry: RegistryConfig{
			SendTimeout:          5 * time.Second,
			BroadcastConcurrency: 64,
		},
		Ledger: LedgerConfig{
			Driver:  LedgerMemory,
			BaseURL: "http://api.nessieisreal.com",
			Timeout: 10 * time.Second,
		},
		Events: EventsConfig{
			Driver:   EventsDirect,
			RedisURL: "redis://localhost:6379/0",
			Topic:    "tapnotify.transfers",
		},
		Log: log.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate rejects configurations the service cannot start with
func (c Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.ChallengeRate < 0 || c.HTTP.ChallengeBurst < 0 {
		errs = append(errs, errors.New("http challenge rate and burst must not be negative"))
	}
	if c.Keys.PrivateKeyPath == "" || c.Keys.PublicKeyPath == "" {
		errs = append(errs, errors.New("keys.private_key_path and keys.public_key_path are required"))
	}
	if c.Registry.SendTimeout <= 0 {
		errs = append(errs, errors.New("registry.send_timeout must be positive"))
	}
	if c.Registry.BroadcastConcurrency <= 0 {
		errs = append(errs, errors.New("registry.broadcast_concurrency must be positive"))
	}

	switch c.Ledger.Driver {
	case LedgerMemory:
	case LedgerNessie:
		if c.Ledger.BaseURL == "" {
			errs = append(errs, errors.New("ledger.base_url is required for the nessie ledger"))
		}
		if c.Ledger.APIKey == "" {
			errs = append(errs, errors.New("ledger.api_key is required for the nessie ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger.driver %q", c.Ledger.Driver))
	}

	switch c.Events.Driver {
	case EventsDirect:
	case EventsRedis:
		if c.Events.RedisURL == "" {
			errs = append(errs, errors.New("events.redis_url is required for the redis driver"))
		}
		if c.Events.Topic == "" {
			errs = append(errs, errors.New("events.topic is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events.driver %q", c.Events.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

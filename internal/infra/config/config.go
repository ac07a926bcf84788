// Package config provides configuration loading from YAML or TOML files.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/osa030/podbox/internal/app/player"
	"github.com/osa030/podbox/internal/infra/kvstore"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Player  PlayerConfig  `yaml:"player" toml:"player"`
	Audio   AudioConfig   `yaml:"audio" toml:"audio"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Spotify SpotifyConfig `yaml:"spotify" toml:"spotify"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr         string      `yaml:"addr" toml:"addr" default:":8080"`
	ControlToken string      `yaml:"control_token" toml:"control_token"`
	CorsOrigins  []string    `yaml:"cors_origins" toml:"cors_origins" default:"[\"*\"]"`
	Hooks        HooksConfig `yaml:"hooks" toml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started" toml:"on_started"`
	OnStopped []string `yaml:"on_stopped" toml:"on_stopped"`
}

// PlayerConfig represents playback controller configuration.
type PlayerConfig struct {
	WatchdogIntervalSec int     `yaml:"watchdog_interval_sec" toml:"watchdog_interval_sec" default:"30" validate:"gte=1,lte=3600"`
	ProgressIntervalMs  int     `yaml:"progress_interval_ms" toml:"progress_interval_ms" default:"1000" validate:"gte=50,lte=60000"`
	SeekGuardMs         int     `yaml:"seek_guard_ms" toml:"seek_guard_ms" default:"1500" validate:"gte=0,lte=30000"`
	DefaultRate         float64 `yaml:"default_rate" toml:"default_rate" default:"1.0" validate:"gt=0"`
	MinRate             float64 `yaml:"min_rate" toml:"min_rate" default:"0.5" validate:"gt=0"`
	MaxRate             float64 `yaml:"max_rate" toml:"max_rate" default:"2.0" validate:"gtefield=MinRate"`
	Volume              float64 `yaml:"volume" toml:"volume" default:"1.0" validate:"gt=0,lte=4"`
}

// AudioConfig selects the audio backend.
type AudioConfig struct {
	Backend  string         `yaml:"backend" toml:"backend" default:"beep" validate:"oneof=beep simulated"`
	Settings map[string]any `yaml:"settings" toml:"settings"`
}

// StorageConfig selects the library storage backend.
type StorageConfig struct {
	Backend string      `yaml:"backend" toml:"backend" default:"memory" validate:"oneof=memory redis"`
	Redis   RedisConfig `yaml:"redis" toml:"redis"`
}

// RedisConfig represents redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr" default:"localhost:6379"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db" validate:"gte=0"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled"`
	ClientID     string `yaml:"client_id" toml:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string `yaml:"client_secret" toml:"client_secret" validate:"required_if=Enabled true"`
	RefreshToken string `yaml:"refresh_token" toml:"refresh_token" validate:"required_if=Enabled true"`
	Market       string `yaml:"market" toml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Load loads configuration from a YAML or TOML file, chosen by extension.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	default:
		return nil, errors.Newf("unsupported config format: %s", filepath.Ext(path))
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var cfg Config
	cfg.overrideFromEnv()
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("PODBOX_CONTROL_TOKEN"); v != "" {
		c.Server.ControlToken = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Storage.Redis.DB = db
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Player.DefaultRate < c.Player.MinRate || c.Player.DefaultRate > c.Player.MaxRate {
		return errors.Newf("default_rate (%.2f) must be within [%.2f, %.2f]",
			c.Player.DefaultRate, c.Player.MinRate, c.Player.MaxRate)
	}

	return nil
}

// PlayerSettings converts the player section into controller configuration.
func (c *Config) PlayerSettings() player.Config {
	return player.Config{
		WatchdogInterval: time.Duration(c.Player.WatchdogIntervalSec) * time.Second,
		ProgressInterval: time.Duration(c.Player.ProgressIntervalMs) * time.Millisecond,
		SeekGuard:        time.Duration(c.Player.SeekGuardMs) * time.Millisecond,
		DefaultRate:      c.Player.DefaultRate,
		MinRate:          c.Player.MinRate,
		MaxRate:          c.Player.MaxRate,
		Volume:           c.Player.Volume,
	}
}

// StoreSettings converts the storage section into key-value store configuration.
func (c *Config) StoreSettings() kvstore.Config {
	return kvstore.Config{
		Backend:  c.Storage.Backend,
		Addr:     c.Storage.Redis.Addr,
		Password: c.Storage.Redis.Password,
		DB:       c.Storage.Redis.DB,
	}
}

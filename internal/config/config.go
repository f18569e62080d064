// Package config loads runtime configuration from the environment,
// optionally seeded from a config file.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full runtime configuration. Flags may override
// individual fields after loading.
type Config struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR" env-default:":8080"`

	// RacesRoot holds the scraped race documents, partitioned
	// year/month/day. TargetRoot holds the fixed-width export tree
	// with its UM, SE and CK subdirectories.
	RacesRoot  string `yaml:"races_root" env:"RACES_ROOT" env-default:"./data/races"`
	TargetRoot string `yaml:"target_root" env:"TARGET_ROOT" env-default:"./data/target"`

	// IndexStateDir is where the reverse index persists its artifacts.
	IndexStateDir     string `yaml:"index_state_dir" env:"INDEX_STATE_DIR" env-default:"./data/index"`
	IndexHorizonYears int    `yaml:"index_horizon_years" env:"INDEX_HORIZON_YEARS" env-default:"3"`

	DirCacheTTL time.Duration `yaml:"dir_cache_ttl" env:"DIR_CACHE_TTL" env-default:"60s"`

	// Watch enables filesystem notification on the data roots so
	// caches drop stale entries before their TTL.
	Watch bool `yaml:"watch" env:"WATCH" env-default:"true"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Load reads configuration from path when non-empty, then overlays the
// environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	return &cfg, nil
}

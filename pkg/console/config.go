package console

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lumacafe/console/pkg/models"
)

// Config is the console configuration, loaded from a TOML file with
// environment overrides for the secrets.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Sync     SyncConfig     `toml:"sync"`
	Featured map[string]int `toml:"featured"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type StoreConfig struct {
	// Backend selects the store implementation: "surreal" or "memory".
	// The memory backend exists for local development without a database.
	Backend   string `toml:"backend"`
	URL       string `toml:"url"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

type SyncConfig struct {
	PageSize      int      `toml:"page_size"`
	CommitTimeout duration `toml:"commit_timeout"`
}

// duration lets TOML carry values like "10s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
// The featured caps differ per collection on purpose: the front page shows
// three reviews but six products and six offers.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Backend:   "memory",
			URL:       "ws://localhost:8000/rpc",
			Namespace: "lumacafe",
			Database:  "console",
		},
		Sync: SyncConfig{
			PageSize:      10,
			CommitTimeout: duration(10 * time.Second),
		},
		Featured: map[string]int{
			models.CollectionReviews:  3,
			models.CollectionProducts: 6,
			models.CollectionOffers:   6,
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets deployment environments inject the store endpoint and
// credentials without writing them into the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("LUMA_STORE_URL"); v != "" {
		c.Store.URL = v
	}
	if v := os.Getenv("LUMA_STORE_USER"); v != "" {
		c.Store.Username = v
	}
	if v := os.Getenv("LUMA_STORE_PASS"); v != "" {
		c.Store.Password = v
	}
	if v := os.Getenv("LUMA_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

func (c *Config) validate() error {
	if c.Store.Backend != "surreal" && c.Store.Backend != "memory" {
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be positive")
	}
	if time.Duration(c.Sync.CommitTimeout) <= 0 {
		return fmt.Errorf("sync.commit_timeout must be positive")
	}
	for name, limit := range c.Featured {
		if limit < 0 {
			return fmt.Errorf("featured limit for %s must not be negative", name)
		}
	}
	return nil
}

// FeaturedLimit returns the configured cap for a collection, zero meaning
// featuring is disabled for it.
func (c *Config) FeaturedLimit(collection string) int {
	return c.Featured[collection]
}

// CommitTimeout returns the bound applied to every remote commit.
func (c *Config) CommitTimeout() time.Duration {
	return time.Duration(c.Sync.CommitTimeout)
}

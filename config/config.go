package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
	Browser BrowserConfig `mapstructure:"browser"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Scraper ScraperConfig `mapstructure:"scraper"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `mapstructure:"host"` // default: "0.0.0.0"
	Port int    `mapstructure:"port"` // default: 8080
	Mode string `mapstructure:"mode"` // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"` // default: false
	APIKeys []string `mapstructure:"api_keys"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // default: "info"
	Format string `mapstructure:"format"` // "json" or "text"; default: "json"
}

// BrowserConfig controls the Chrome process and the rendering strategy.
type BrowserConfig struct {
	// Enabled toggles the rendering fallback. Without it only the HTTP
	// strategy runs.
	Enabled   bool   `mapstructure:"enabled"`    // default: true
	Headless  bool   `mapstructure:"headless"`   // default: true
	NoSandbox bool   `mapstructure:"no_sandbox"` // needed in Docker
	Bin       string `mapstructure:"bin"`

	// BlockedResourceTypes lists CDP resource types refused by every page.
	// Images stay allowed so lazy galleries still populate.
	BlockedResourceTypes []string `mapstructure:"blocked_resource_types"` // default: ["Font", "Media"]
	BlockAds             bool     `mapstructure:"block_ads"`              // default: true

	Timeout         time.Duration `mapstructure:"timeout"`          // default: 2m
	SettleDelay     time.Duration `mapstructure:"settle_delay"`     // default: 5s
	PostWaitDelay   time.Duration `mapstructure:"post_wait_delay"`  // default: 5s
	SelectorTimeout time.Duration `mapstructure:"selector_timeout"` // default: 10s
}

// FetchConfig controls the plain HTTP strategy.
type FetchConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"` // default: 30s
}

// ProxyConfig controls the proxy pool.
type ProxyConfig struct {
	Enabled bool `mapstructure:"enabled"` // default: false

	// Source is "freeproxylist" or "static".
	Source    string   `mapstructure:"source"`    // default: "freeproxylist"
	ListURL   string   `mapstructure:"list_url"`  // freeproxylist page
	Addresses []string `mapstructure:"addresses"` // static source
	Countries []string `mapstructure:"countries"` // default: ["US", "CA"]
	CheckURL  string   `mapstructure:"check_url"` // default: https://www.google.com

	RefreshThreshold int           `mapstructure:"refresh_threshold"` // default: 5
	BatchSize        int           `mapstructure:"batch_size"`        // default: 10
	CandidateTimeout time.Duration `mapstructure:"candidate_timeout"` // default: 1s
	CheckTimeout     time.Duration `mapstructure:"check_timeout"`     // default: 5s
	RefillCooldown   time.Duration `mapstructure:"refill_cooldown"`   // default: 30s
	ListRefresh      time.Duration `mapstructure:"list_refresh"`      // default: 10m
}

// CacheConfig controls the product record cache.
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"` // "memory", "redis" or "none"; default: "memory"
	TTL        time.Duration `mapstructure:"ttl"`     // default: 24h
	OpTimeout  time.Duration `mapstructure:"op_timeout"`
	MaxEntries int           `mapstructure:"max_entries"` // memory backend; default: 10000

	RedisAddr     string `mapstructure:"redis_addr"` // default: "localhost:6379"
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

// ScraperConfig controls the fetch retry loop.
type ScraperConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"` // default: 3
	BaseDelay   time.Duration `mapstructure:"base_delay"`   // default: 1s
	MaxDelay    time.Duration `mapstructure:"max_delay"`    // default: 30s

	// RequestTimeout bounds one API or MCP scrape end to end.
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // default: 10m
}

// Load reads configuration from an optional shelfscan.yaml and from
// SHELFSCAN_* environment variables, e.g. SHELFSCAN_CACHE_REDIS_ADDR.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("shelfscan")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shelfscan/")

	v.SetEnvPrefix("SHELFSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_keys", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.blocked_resource_types", []string{"Font", "Media"})
	v.SetDefault("browser.block_ads", true)
	v.SetDefault("browser.timeout", "2m")
	v.SetDefault("browser.settle_delay", "5s")
	v.SetDefault("browser.post_wait_delay", "5s")
	v.SetDefault("browser.selector_timeout", "10s")

	v.SetDefault("fetch.http_timeout", "30s")

	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.source", "freeproxylist")
	v.SetDefault("proxy.list_url", "https://free-proxy-list.net/")
	v.SetDefault("proxy.addresses", []string{})
	v.SetDefault("proxy.countries", []string{"US", "CA"})
	v.SetDefault("proxy.check_url", "https://www.google.com")
	v.SetDefault("proxy.refresh_threshold", 5)
	v.SetDefault("proxy.batch_size", 10)
	v.SetDefault("proxy.candidate_timeout", "1s")
	v.SetDefault("proxy.check_timeout", "5s")
	v.SetDefault("proxy.refill_cooldown", "30s")
	v.SetDefault("proxy.list_refresh", "10m")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.op_timeout", "2s")
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "shelfscan:product:")

	v.SetDefault("scraper.max_attempts", 3)
	v.SetDefault("scraper.base_delay", "1s")
	v.SetDefault("scraper.max_delay", "30s")
	v.SetDefault("scraper.request_timeout", "10m")
}

// Validate rejects combinations the binaries cannot start with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be memory, redis or none, got %q", c.Cache.Backend)
	}

	if c.Proxy.Enabled {
		switch c.Proxy.Source {
		case "freeproxylist":
		case "static":
			if len(c.Proxy.Addresses) == 0 {
				return errors.New("proxy.addresses is required when proxy.source is static")
			}
		default:
			return fmt.Errorf("proxy.source must be freeproxylist or static, got %q", c.Proxy.Source)
		}
	}

	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return errors.New("auth.api_keys is required when auth is enabled")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Package config loads the Placemark client configuration from defaults, an
// optional .env file and PLACEMARK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/placemark-app/placemark-client/pkg/auth"
	"github.com/placemark-app/placemark-client/pkg/client"
	"github.com/placemark-app/placemark-client/pkg/logging"
	"github.com/redis/go-redis/v9"
)

// EnvPrefix starts every environment variable read by Load.
// PLACEMARK_BASE_URL sets base_url, PLACEMARK_PAGE_SIZE sets page_size.
const EnvPrefix = "PLACEMARK_"

// Config is the complete client configuration.
type Config struct {
	// BaseURL of the Placemark API
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// UserAgent sent with every request
	UserAgent string `koanf:"user_agent" validate:"required"`

	// Timeout per HTTP attempt
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// PageSize is the take parameter of every page request
	PageSize int `koanf:"page_size" validate:"gte=1,lte=100"`

	// MaxRetries for server, rate limit and network errors
	MaxRetries int `koanf:"max_retries" validate:"gte=0,lte=10"`

	// Token is a static bearer token. Empty sends anonymous requests unless a
	// token is stored in Redis.
	Token string `koanf:"token"`

	// RedisAddr enables the shared cache, rate limit state and token store
	RedisAddr string `koanf:"redis_addr"`

	LogLevel  string `koanf:"log_level"`
	LogPretty bool   `koanf:"log_pretty"`

	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090"
	MetricsAddr string `koanf:"metrics_addr"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		BaseURL:    "https://api.placemark.app",
		UserAgent:  "placemark-client/0.1.0",
		Timeout:    30 * time.Second,
		PageSize:   10,
		MaxRetries: 0,
		LogLevel:   string(logging.LevelInfo),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load builds the configuration. Values from envFiles that exist are added to
// the process environment without overriding variables already set; missing
// files are skipped.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// transformEnvKey converts PLACEMARK_BASE_URL to base_url.
func transformEnvKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
}

// Validate checks struct tags and the fields tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if err := logging.ValidateLevel(logging.LogLevel(c.LogLevel)); err != nil {
		return err
	}

	if c.RedisAddr != "" {
		if _, _, err := net.SplitHostPort(c.RedisAddr); err != nil {
			return fmt.Errorf("invalid redis_addr %q: %w", c.RedisAddr, err)
		}
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("invalid metrics_addr %q: %w", c.MetricsAddr, err)
		}
	}

	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

// Redis returns a Redis client for RedisAddr, or nil when Redis is not configured.
func (c *Config) Redis() *redis.Client {
	if c.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: c.RedisAddr})
}

// Tokens returns the token source: the static Token when set, otherwise the
// Redis token store when Redis is available, otherwise nil.
func (c *Config) Tokens(redisClient *redis.Client) auth.TokenSource {
	switch {
	case c.Token != "":
		return auth.StaticToken(c.Token)
	case redisClient != nil:
		return auth.NewRedisStore(redisClient)
	default:
		return nil
	}
}

// Client returns the API client configuration.
func (c *Config) Client(redisClient *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.BaseURL, c.UserAgent)
	cfg.Timeout = c.Timeout
	cfg.MaxRetries = c.MaxRetries
	cfg.Redis = redisClient
	cfg.Tokens = c.Tokens(redisClient)
	return cfg
}

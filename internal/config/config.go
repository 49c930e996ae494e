// Package config loads the hxbus command configuration.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	State  StateConfig  `mapstructure:"state"`
	Push   PushConfig   `mapstructure:"push"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// Pages is a doublestar pattern selecting the page declarations.
	Pages string `mapstructure:"pages"`
	// Watch reloads declarations when they change on disk.
	Watch bool `mapstructure:"watch"`
}

// StateConfig holds view state settings. View state is disabled when
// Key is empty.
type StateConfig struct {
	Key       string `mapstructure:"key"`
	Sensitive bool   `mapstructure:"sensitive"`
}

// PushConfig selects the server push backend.
type PushConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Prefix        string `mapstructure:"prefix"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from file and env. Env var overrides use
// prefix HXBUS_, e.g. HXBUS_SERVER_ADDR. When path is empty an optional
// hxbus.yaml in the working directory is read.
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.pages", "pages/**/*.yaml")
	v.SetDefault("server.watch", false)
	v.SetDefault("state.key", "")
	v.SetDefault("state.sensitive", false)
	v.SetDefault("push.backend", "memory")
	v.SetDefault("push.redis_addr", "localhost:6379")
	v.SetDefault("push.redis_password", "")
	v.SetDefault("push.redis_db", 0)
	v.SetDefault("push.prefix", "hxbus:push:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("hxbus")
	}

	v.SetEnvPrefix("HXBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Push.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("config: unknown push backend %q", c.Push.Backend)
	}
	if c.State.Sensitive && c.State.Key == "" {
		return errors.New("config: state.sensitive requires state.key")
	}
	return nil
}

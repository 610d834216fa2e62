// Package config loads the runtime configuration from a YAML file and
// HALEY_-prefixed environment variables, the environment winning.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	// Listen is the HTTP bind address.
	Listen string `mapstructure:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// AdminID is the actor allowed to change roles. Zero disables /setrole.
	AdminID int64 `mapstructure:"admin_id"`

	// SessionTTL bounds how long an idle session survives.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// BridgeURL is the outbound chat bridge. Empty means log-only sends.
	BridgeURL string `mapstructure:"bridge_url"`

	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig selects the persistence backend. An empty Addr keeps
// everything in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load reads the configuration. An explicit path must exist; otherwise
// haley.yaml is looked for in the working directory and defaults apply
// when absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("listen", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("admin_id", 0)
	v.SetDefault("session_ttl", 30*time.Minute)
	v.SetDefault("bridge_url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("haley")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("HALEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

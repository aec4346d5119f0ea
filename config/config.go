// Package config loads job importer configuration via viper.
//
// Configuration is resolved from three layers, later layers winning:
// built-in defaults, an optional importer.toml config file, and
// IMPORTER_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/breakingdawnisback/Job-Importer/errors"
)

// Config holds all runtime configuration for importerd.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP/WebSocket server.
type ServerConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	MaxClients     int      `mapstructure:"max_clients"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig configures the sqlite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// FetchConfig bounds outbound feed fetching.
type FetchConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RatePerMinute  float64 `mapstructure:"rate_per_minute"`
	MaxBodyBytes   int64   `mapstructure:"max_body_bytes"`
}

// LogConfig configures logging output.
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// Timeout returns the feed fetch timeout as a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.max_clients", 100)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("database.path", "./data/importer.db")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.rate_per_minute", 60)
	v.SetDefault("fetch.max_body_bytes", int64(5*1024*1024))
	v.SetDefault("log.json", false)
}

// Load reads configuration from defaults, importer.toml, and environment.
// A missing config file is not an error; a malformed one is.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration like Load but from an explicit config file
// path when one is given (the --config flag).
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("importer")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/importer")
	}

	v.SetEnvPrefix("IMPORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		// No config file is fine; defaults and env still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot work at all.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return errors.New("server.listen_addr must not be empty")
	}
	if c.Server.MaxClients < 1 {
		return errors.Newf("server.max_clients must be positive, got %d", c.Server.MaxClients)
	}
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Fetch.TimeoutSeconds < 1 {
		return errors.Newf("fetch.timeout_seconds must be positive, got %d", c.Fetch.TimeoutSeconds)
	}
	if c.Fetch.RatePerMinute <= 0 {
		return errors.Newf("fetch.rate_per_minute must be positive, got %v", c.Fetch.RatePerMinute)
	}
	return nil
}

// Package config provides configuration management for transcoded using
// Viper, mirroring the teacher's internal/config pattern (env-driven
// defaults, no required config file) scaled down to the handful of knobs
// this service actually exposes (spec §6.1, §6.5).
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultSocketPath = "unix.socket"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
)

// Config holds the supervisor's runtime configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds local-endpoint configuration (spec §6.1).
type ServerConfig struct {
	SocketPath string `mapstructure:"socket_path"`
}

// LoggingConfig holds logging configuration, passed straight through to
// internal/applog.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New builds a Viper instance pre-seeded with transcoded's defaults and
// wired to read UNIX_SOCKET and (optionally) TRANSCODED_-prefixed
// overrides for logging, matching the teacher's daemonViper pattern. The
// socket path intentionally reads the bare UNIX_SOCKET env var per spec
// §6.1 rather than a prefixed one, since the protocol names it directly.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.socket_path", DefaultSocketPath)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	_ = v.BindEnv("server.socket_path", "UNIX_SOCKET")
	_ = v.BindEnv("logging.level", "TRANSCODED_LOG_LEVEL")
	_ = v.BindEnv("logging.format", "TRANSCODED_LOG_FORMAT")

	return v
}

// Load resolves v into a Config value.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Server.SocketPath == "" {
		cfg.Server.SocketPath = DefaultSocketPath
	}
	return cfg, nil
}

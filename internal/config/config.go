// Package config loads process configuration from defaults,
// environment variables, and an optional config file.
//
// Precedence is flags > environment > config file > defaults. The
// environment prefix is PLOTMAN (e.g. PLOTMAN_SERVER_PORT).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for all settings.
const EnvPrefix = "PLOTMAN"

// Config is the resolved process configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	History HistoryConfig `mapstructure:"history"`
}

// ServerConfig configures the status HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// MonitorConfig configures the polling loop.
type MonitorConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	FilesystemTimeout time.Duration `mapstructure:"filesystem_timeout"`
	ProcessTimeout    time.Duration `mapstructure:"process_timeout"`
}

// HistoryConfig configures the completed-transfer ledger. An empty
// path disables the ledger.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)

	v.SetDefault("monitor.interval", "20s")
	v.SetDefault("monitor.filesystem_timeout", "20s")
	v.SetDefault("monitor.process_timeout", "20s")

	v.SetDefault("history.path", "")
}

// Load resolves configuration from v. An optional config file path may
// be supplied; when empty, only defaults and environment apply.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive: %s", c.Monitor.Interval)
	}
	if c.Monitor.FilesystemTimeout <= 0 {
		return fmt.Errorf("filesystem timeout must be positive: %s", c.Monitor.FilesystemTimeout)
	}
	if c.Monitor.ProcessTimeout <= 0 {
		return fmt.Errorf("process timeout must be positive: %s", c.Monitor.ProcessTimeout)
	}
	return nil
}

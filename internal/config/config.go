// Package config loads server configuration from defaults, an optional
// config file, and NBSERVER_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	DeArrow  DeArrowConfig  `mapstructure:"dearrow"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type DeArrowConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Workers        int           `mapstructure:"workers"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func defaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:5001",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(home, ".newsboat", "cache.db"),
		},
		DeArrow: DeArrowConfig{
			BaseURL:        "https://sponsor.ajay.app",
			Workers:        10,
			RequestTimeout: 5 * time.Second,
			BatchTimeout:   60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration. A missing config file is fine; defaults and
// environment variables still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("server", cfg.Server)
	v.SetDefault("database", cfg.Database)
	v.SetDefault("dearrow", cfg.DeArrow)
	v.SetDefault("logging", cfg.Logging)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Join(homeDir, ".config", "nbserver"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NBSERVER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	config.Database.Path = expandPath(config.Database.Path)
	return &config, nil
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.accessPin", "")
	v.SetDefault("server.rateLimit.requestsPerSecond", 10.0)
	v.SetDefault("server.rateLimit.burst", 20)
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.maxBytes", int64(1<<30)) // 1 GiB guard
	v.SetDefault("uploads.ttlSeconds", 0)
	v.SetDefault("rooms.codeLength", 6)
	v.SetDefault("rooms.ttlMinutes", 60)
	v.SetDefault("session.secret", "default-secret-key-change-me")
	v.SetDefault("session.ttlMinutes", 720)
	v.SetDefault("cleanup.intervalSeconds", 60)
	v.SetDefault("discovery.zeroconf", true)
	v.SetDefault("discovery.serviceName", "")
	v.SetDefault("transport.readTimeout", "60s")
	v.SetDefault("log.level", "info")

	// 2. Set config file details
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".") // look for config in the working directory

	// 3. Set up environment variable handling
	v.SetEnvPrefix("WIFIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	// 5. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

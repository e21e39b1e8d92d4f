package config

import "time"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Rooms     RoomsConfig     `mapstructure:"rooms"`
	Session   SessionConfig   `mapstructure:"session"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Transport TransportConfig `mapstructure:"transport"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Address   string          `mapstructure:"address"`
	AccessPin string          `mapstructure:"accessPin"` // empty = no global gate
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requestsPerSecond"`
	Burst             int     `mapstructure:"burst"`
}

type UploadsConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"maxBytes"`
	// TTLSeconds enables automatic deletion of files older than the TTL.
	// 0 disables cleanup; files then live until explicitly deleted.
	TTLSeconds int `mapstructure:"ttlSeconds"`
}

type RoomsConfig struct {
	CodeLength int `mapstructure:"codeLength"`
	TTLMinutes int `mapstructure:"ttlMinutes"`
}

type SessionConfig struct {
	Secret     string `mapstructure:"secret"`
	TTLMinutes int    `mapstructure:"ttlMinutes"`
}

type CleanupConfig struct {
	IntervalSeconds int `mapstructure:"intervalSeconds"`
}

type DiscoveryConfig struct {
	Zeroconf    bool   `mapstructure:"zeroconf"`
	ServiceName string `mapstructure:"serviceName"`
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func (u UploadsConfig) TTL() time.Duration {
	return time.Duration(u.TTLSeconds) * time.Second
}

func (r RoomsConfig) TTL() time.Duration {
	return time.Duration(r.TTLMinutes) * time.Minute
}

func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

func (c CleanupConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

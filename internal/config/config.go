package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabaseDriver string `mapstructure:"database_driver" yaml:"database_driver"`
	DatabasePath   string `mapstructure:"database_path" yaml:"database_path"`
	DatabaseURL    string `mapstructure:"database_url" yaml:"database_url"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	// JWTRequired=false lets websocket clients identify with ?userId= (dev only).
	JWTRequired bool `mapstructure:"jwt_required" yaml:"jwt_required"`

	MaxMessageBytes   int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessagesPerMinute int   `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`

	UploadDir     string `mapstructure:"upload_dir" yaml:"upload_dir"`
	UploadBaseURL string `mapstructure:"upload_base_url" yaml:"upload_base_url"`
	MaxImageBytes int64  `mapstructure:"max_image_bytes" yaml:"max_image_bytes"`

	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`

	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`

	NATSURL string `mapstructure:"nats_url" yaml:"nats_url"`

	SeenWorkers int `mapstructure:"seen_workers" yaml:"seen_workers"`
}

// frameOverhead covers the JSON envelope, the data URL prefix and the text
// that travel with an image in one sendMessage frame.
const frameOverhead = 64 << 10

// MinMessageBytes is the smallest socket read limit that still fits a
// sendMessage frame carrying a maxImageBytes image as a base64 data URL.
func MinMessageBytes(maxImageBytes int64) int64 {
	return (maxImageBytes+2)/3*4 + frameOverhead
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":5000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabaseDriver:    "sqlite",
		DatabasePath:      "yapyard.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "yapyard",
		JWTAudience:       "yapyard",
		JWTTTL:            7 * 24 * time.Hour,
		JWTRequired:       true,
		MaxMessageBytes:   8 << 20,
		MessagesPerMinute: 120,
		UploadDir:         "uploads",
		UploadBaseURL:     "/uploads",
		MaxImageBytes:     3 << 20,
		CORSOrigins:       []string{"http://localhost:5173"},
		SeenWorkers:       2,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Booleans are left alone because their zero value is meaningful.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabaseDriver != "" {
		c.DatabaseDriver = other.DatabaseDriver
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.DatabaseURL != "" {
		c.DatabaseURL = other.DatabaseURL
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.NATSURL != "" {
		c.NATSURL = other.NATSURL
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the gateway.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"` // empty means in-memory caches
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	// Token issuance / verification.
	Issuer             string `mapstructure:"ISSUER"`
	SigningSecret      string `mapstructure:"SIGNING_SECRET"`    // HMAC secret; empty -> ephemeral RSA key
	AccessTokenTTL     string `mapstructure:"ACCESS_TOKEN_TTL"`  // Go duration, default ten years
	VerifyCacheTTLSec  int    `mapstructure:"VERIFY_CACHE_TTL_SEC"`

	// At-rest and transit encryption, base64-encoded 32-byte keys.
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`
	BundleKey     string `mapstructure:"BUNDLE_KEY"`

	// Refresh coordinator.
	RefreshCacheTTLSec   int `mapstructure:"REFRESH_CACHE_TTL_SEC"`
	RefreshSkewSec       int `mapstructure:"REFRESH_SKEW_SEC"`
	RefreshRateLimit     int `mapstructure:"REFRESH_RATE_LIMIT"`
	RefreshRateWindowSec int `mapstructure:"REFRESH_RATE_WINDOW_SEC"`
	RefreshRetries       int `mapstructure:"REFRESH_RETRIES"`

	// Sandboxed executor.
	SandboxInterpreter   string `mapstructure:"SANDBOX_INTERPRETER"`
	SandboxTimeoutSec    int    `mapstructure:"SANDBOX_TIMEOUT_SEC"`
	SandboxMaxConcurrent int    `mapstructure:"SANDBOX_MAX_CONCURRENT"`
}

// AccessTokenTTLDuration parses the configured token TTL.
func (c *ServerConfig) AccessTokenTTLDuration() (time.Duration, error) {
	return time.ParseDuration(c.AccessTokenTTL)
}

// LoadConfig reads configuration from file, environment variables, and
// defaults, in that order of increasing precedence for env vars.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/mcpgate/")
	v.AddConfigPath("$HOME/.mcpgate")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/mcpgate_dev")
	v.SetDefault("MONGO_DB_NAME", "mcpgate_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)

	v.SetDefault("ISSUER", "mcpgate")
	v.SetDefault("SIGNING_SECRET", "")
	// Effectively non-expiring: revocation, not expiry, is the control.
	v.SetDefault("ACCESS_TOKEN_TTL", "87600h")
	v.SetDefault("VERIFY_CACHE_TTL_SEC", 60)

	v.SetDefault("ENCRYPTION_KEY", "")
	v.SetDefault("BUNDLE_KEY", "")

	v.SetDefault("REFRESH_CACHE_TTL_SEC", 300)
	v.SetDefault("REFRESH_SKEW_SEC", 120)
	v.SetDefault("REFRESH_RATE_LIMIT", 5)
	v.SetDefault("REFRESH_RATE_WINDOW_SEC", 3600)
	v.SetDefault("REFRESH_RETRIES", 3)

	v.SetDefault("SANDBOX_INTERPRETER", "python3")
	v.SetDefault("SANDBOX_TIMEOUT_SEC", 30)
	v.SetDefault("SANDBOX_MAX_CONCURRENT", 16)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file is optional; defaults and env vars carry the rest.
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required (base64, 32 bytes)")
	}
	if cfg.BundleKey == "" {
		return nil, fmt.Errorf("BUNDLE_KEY is required (base64, 32 bytes)")
	}

	return &cfg, nil
}

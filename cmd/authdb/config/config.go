// Package config loads the authdb CLI configuration from an optional YAML
// file and AUTHDB_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/MrEthical07/authdb"
)

const envPrefix = "AUTHDB"

// Config is everything the CLI needs to open a DB.
type Config struct {
	Redis  *Redis
	Logger *Logger
	DB     authdb.Config
}

// Redis holds the connection settings passed to go-redis.
type Redis struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// Logger selects the logrus level and formatter.
type Logger struct {
	Level  string
	Format string // "text" or "json"
}

// New returns a viper instance wired to the AUTHDB_ environment, e.g.
// AUTHDB_REDIS_ADDR for redis.addr.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configPath when set and maps every key onto Config. Unset keys
// keep their defaults. The result is validated.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Redis:  getRedisConfig(v),
		Logger: getLoggerConfig(v),
		DB:     getDBConfig(v),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the CLI settings and the embedded authdb config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("redis.addr must not be empty")
	}
	switch c.Logger.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logger.format %q is not supported", c.Logger.Format)
	}
	if err := c.DB.Validate(); err != nil {
		return fmt.Errorf("invalid authdb config: %w", err)
	}
	return nil
}

func getRedisConfig(v *viper.Viper) *Redis {
	return &Redis{
		Addr:     getStringOrDefault(v, "redis.addr", "127.0.0.1:6379"),
		Username: v.GetString("redis.username"),
		Password: v.GetString("redis.password"),
		DB:       getIntOrDefault(v, "redis.db", 0),
	}
}

func getLoggerConfig(v *viper.Viper) *Logger {
	return &Logger{
		Level:  getStringOrDefault(v, "logger.level", "info"),
		Format: getStringOrDefault(v, "logger.format", "text"),
	}
}

func getDBConfig(v *viper.Viper) authdb.Config {
	d := authdb.DefaultConfig()

	return authdb.Config{
		Keys: authdb.KeysConfig{
			Prefix:    getStringOrDefault(v, "keys.prefix", d.Keys.Prefix),
			ScanCount: int64(getIntOrDefault(v, "keys.scan_count", int(d.Keys.ScanCount))),
		},
		Password: authdb.PasswordConfig{
			Required:    getBoolOrDefault(v, "password.required", d.Password.Required),
			MinLength:   getIntOrDefault(v, "password.min_length", d.Password.MinLength),
			MaxLength:   getIntOrDefault(v, "password.max_length", d.Password.MaxLength),
			SaltLength:  getIntOrDefault(v, "password.salt_length", d.Password.SaltLength),
			Algorithm:   getStringOrDefault(v, "password.algorithm", d.Password.Algorithm),
			Iterations:  getIntOrDefault(v, "password.iterations", d.Password.Iterations),
			KeyLength:   getIntOrDefault(v, "password.key_length", d.Password.KeyLength),
			Digest:      getStringOrDefault(v, "password.digest", d.Password.Digest),
			Memory:      getUint32OrDefault(v, "password.memory", d.Password.Memory),
			Time:        getUint32OrDefault(v, "password.time", d.Password.Time),
			Parallelism: uint8(getIntOrDefault(v, "password.parallelism", int(d.Password.Parallelism))),
		},
		Session: authdb.SessionConfig{
			DefaultTTL: getDurationOrDefault(v, "session.default_ttl", d.Session.DefaultTTL),
			ScanCount:  int64(getIntOrDefault(v, "session.scan_count", int(d.Session.ScanCount))),
		},
		Timestamps: authdb.TimestampsConfig{
			AutoStamp: getBoolOrDefault(v, "timestamps.auto_stamp", d.Timestamps.AutoStamp),
		},
		Audit: authdb.AuditConfig{
			Enabled:    getBoolOrDefault(v, "audit.enabled", d.Audit.Enabled),
			BufferSize: getIntOrDefault(v, "audit.buffer_size", d.Audit.BufferSize),
			DropIfFull: getBoolOrDefault(v, "audit.drop_if_full", d.Audit.DropIfFull),
		},
		Metrics: authdb.MetricsConfig{
			Enabled:                 getBoolOrDefault(v, "metrics.enabled", d.Metrics.Enabled),
			EnableLatencyHistograms: getBoolOrDefault(v, "metrics.latency_histograms", d.Metrics.EnableLatencyHistograms),
		},
	}
}

// Package config loads service settings from defaults, an optional config
// file and TASKLOAD_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iliamunaev/taskload/internal/service/pool"
)

// EnvPrefix is prepended to every environment variable, e.g. TASKLOAD_ADDR.
const EnvPrefix = "TASKLOAD"

// Keys understood by Load.
const (
	KeyConfigFile      = "config"
	KeyAddr            = "addr"
	KeyMaxConcurrent   = "max_concurrent"
	KeyRequestTimeout  = "request_timeout"
	KeyDefaultDelay    = "default_delay"
	KeyRetention       = "retention"
	KeyShutdownTimeout = "shutdown_timeout"
	KeyLogLevel        = "log_level"
)

// Config holds the service settings.
type Config struct {
	Addr            string
	MaxConcurrent   int
	RequestTimeout  time.Duration
	DefaultDelay    time.Duration
	Retention       time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyMaxConcurrent, 8)
	v.SetDefault(KeyRequestTimeout, 10*time.Second)
	v.SetDefault(KeyDefaultDelay, 200*time.Millisecond)
	v.SetDefault(KeyRetention, time.Minute)
	v.SetDefault(KeyShutdownTimeout, 15*time.Second)
	v.SetDefault(KeyLogLevel, "info")
}

// Load reads the configuration from v. If the "config" key names a file,
// it is read first; environment variables override it.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Addr:            v.GetString(KeyAddr),
		MaxConcurrent:   v.GetInt(KeyMaxConcurrent),
		RequestTimeout:  v.GetDuration(KeyRequestTimeout),
		DefaultDelay:    v.GetDuration(KeyDefaultDelay),
		Retention:       v.GetDuration(KeyRetention),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
		LogLevel:        v.GetString(KeyLogLevel),
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.Addr == "" {
		return fmt.Errorf("config: %s must not be empty", KeyAddr)
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 1
	}
	if c.MaxConcurrent > pool.MaxSize {
		c.MaxConcurrent = pool.MaxSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.DefaultDelay < 0 {
		c.DefaultDelay = 0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	return nil
}

package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opengov-in/parivesh-sync/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Portal PortalConfig `yaml:"portal" mapstructure:"portal"`
	Sync   SyncConfig   `yaml:"sync" mapstructure:"sync"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	Path        string            `yaml:"path" mapstructure:"path"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PortalConfig configures the portal API client.
type PortalConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	SiteURL     string  `yaml:"site_url" mapstructure:"site_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// SyncConfig configures reconcile passes and the watcher.
type SyncConfig struct {
	PaceMillis   int  `yaml:"pace_millis" mapstructure:"pace_millis"`
	IntervalMins int  `yaml:"interval_mins" mapstructure:"interval_mins"`
	FetchDetails bool `yaml:"fetch_details" mapstructure:"fetch_details"`
}

// Pace returns the per-proposal pacing delay.
func (c SyncConfig) Pace() time.Duration {
	return time.Duration(c.PaceMillis) * time.Millisecond
}

// Interval returns the watcher poll interval.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMins) * time.Minute
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARIVESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "parivesh.db")
	v.SetDefault("portal.base_url", "https://parivesh.nic.in/parivesh_api")
	v.SetDefault("portal.site_url", "https://parivesh.nic.in")
	v.SetDefault("portal.user_agent", "parivesh-sync/1.0")
	v.SetDefault("portal.timeout_secs", 60)
	v.SetDefault("portal.max_retries", 3)
	v.SetDefault("portal.rate_per_sec", 2)
	v.SetDefault("portal.burst", 4)
	v.SetDefault("sync.pace_millis", 500)
	v.SetDefault("sync.interval_mins", 60)
	v.SetDefault("sync.fetch_details", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

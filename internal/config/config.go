package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Fog        FogConfig        `mapstructure:"fog"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Version    VersionConfig    `mapstructure:"version"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	HTTP   HTTPServerConfig   `mapstructure:"http"`
	Health HealthServerConfig `mapstructure:"health"`
}

// HTTPServerConfig holds HTTP API configuration
type HTTPServerConfig struct {
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	LogLevel              string        `mapstructure:"log_level"`
	LogFormat             string        `mapstructure:"log_format"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	WriteTimeout          time.Duration `mapstructure:"write_timeout"`
	CORSOrigins           []string      `mapstructure:"cors_origins"`
	Compression           bool          `mapstructure:"compression"`
}

// HealthServerConfig holds the gRPC health endpoint configuration
type HealthServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// StorageConfig holds unified map document storage settings
type StorageConfig struct {
	// DataDir is where <map>_data.json files live; empty keeps documents in memory
	DataDir       string        `mapstructure:"data_dir"`
	ReadAttempts  int           `mapstructure:"read_attempts"`
	ReadBackoff   time.Duration `mapstructure:"read_backoff"`
	WriteAttempts int           `mapstructure:"write_attempts"`
	WriteBackoff  time.Duration `mapstructure:"write_backoff"`
}

// FogConfig holds reveal engine settings
type FogConfig struct {
	DefaultRadius       int `mapstructure:"default_radius"`
	HideTolerance       int `mapstructure:"hide_tolerance"`
	CompactionThreshold int `mapstructure:"compaction_threshold"`
	DedupTolerance      int `mapstructure:"dedup_tolerance"`
	MaxAreas            int `mapstructure:"max_areas"`
}

// MonitoringConfig holds runtime monitoring settings
type MonitoringConfig struct {
	Enabled                 bool          `mapstructure:"enabled"`
	Interval                time.Duration `mapstructure:"interval"`
	GoroutineAlertThreshold int           `mapstructure:"goroutine_alert_threshold"`
}

// VersionConfig points at the build metadata served by /api/version
type VersionConfig struct {
	File string `mapstructure:"file"`
}

var (
	// Global config instance
	cfg *Config
	v   *viper.Viper
	mu  sync.RWMutex
)

// setViperDefaults sets all default values using Viper's SetDefault
func setViperDefaults(v *viper.Viper) {
	// HTTP server defaults
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.log_level", "info")
	v.SetDefault("server.http.log_format", "console")
	v.SetDefault("server.http.graceful_shutdown_delay", 2*time.Second)
	v.SetDefault("server.http.read_timeout", 15*time.Second)
	v.SetDefault("server.http.write_timeout", 30*time.Second)
	v.SetDefault("server.http.cors_origins", []string{})
	v.SetDefault("server.http.compression", true)

	// Health defaults
	v.SetDefault("server.health.enabled", true)
	v.SetDefault("server.health.port", 50052)

	// Storage defaults
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.read_attempts", 3)
	v.SetDefault("storage.read_backoff", 25*time.Millisecond)
	v.SetDefault("storage.write_attempts", 3)
	v.SetDefault("storage.write_backoff", 100*time.Millisecond)

	// Fog defaults
	v.SetDefault("fog.default_radius", 50)
	v.SetDefault("fog.hide_tolerance", 10)
	v.SetDefault("fog.compaction_threshold", 1000)
	v.SetDefault("fog.dedup_tolerance", 3)
	v.SetDefault("fog.max_areas", 5000)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.interval", 30*time.Second)
	v.SetDefault("monitoring.goroutine_alert_threshold", 1000)

	v.SetDefault("version.file", "version.json")
}

// Init initializes the configuration
func Init(configPath string) error {
	nv := viper.New()
	setViperDefaults(nv)

	if configPath != "" {
		nv.SetConfigFile(configPath)
	} else {
		nv.SetConfigName("config")
		nv.SetConfigType("yaml")
		nv.AddConfigPath(".")
		nv.AddConfigPath("./config")
		nv.AddConfigPath("/etc/fog-preview")
	}

	nv.SetEnvPrefix("FOW")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	if err := nv.ReadInConfig(); err != nil {
		// A missing explicit file falls back to defaults; for the default
		// search path only ConfigFileNotFoundError is tolerated.
		if configPath == "" {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	c := &Config{}
	if err := nv.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := Validate(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	mu.Lock()
	v = nv
	cfg = c
	mu.Unlock()
	return nil
}

// Get returns the global config instance
func Get() *Config {
	mu.RLock()
	c := cfg
	mu.RUnlock()
	if c == nil {
		if err := Init(""); err != nil {
			panic("failed to initialize config with defaults: " + err.Error())
		}
		mu.RLock()
		c = cfg
		mu.RUnlock()
	}
	return c
}

// ConfigFilePath returns the path of the loaded config file
func ConfigFilePath() string {
	mu.RLock()
	defer mu.RUnlock()
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// WatchConfig enables hot-reloading of the config file. onChange receives the
// reloaded config; a reload that fails validation keeps the previous config.
func WatchConfig(onChange func(*Config, error)) {
	mu.RLock()
	wv := v
	mu.RUnlock()
	if wv == nil || wv.ConfigFileUsed() == "" {
		return
	}

	wv.OnConfigChange(func(e fsnotify.Event) {
		next := &Config{}
		err := wv.Unmarshal(next)
		if err == nil {
			err = Validate(next)
		}
		if err == nil {
			mu.Lock()
			cfg = next
			mu.Unlock()
		}
		if onChange != nil {
			onChange(Get(), err)
		}
	})
	wv.WatchConfig()
}

// Validate validates the configuration values
func Validate(c *Config) error {
	if c.Server.HTTP.Port <= 0 || c.Server.HTTP.Port > 65535 {
		return fmt.Errorf("server.http.port must be between 1 and 65535")
	}
	switch c.Server.HTTP.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("server.http.log_format must be console or json")
	}
	if c.Server.HTTP.GracefulShutdownDelay < 0 {
		return fmt.Errorf("server.http.graceful_shutdown_delay must be non-negative")
	}
	if c.Server.Health.Enabled && (c.Server.Health.Port <= 0 || c.Server.Health.Port > 65535) {
		return fmt.Errorf("server.health.port must be between 1 and 65535")
	}
	if c.Server.Health.Enabled && c.Server.Health.Port == c.Server.HTTP.Port {
		return fmt.Errorf("server.health.port must differ from server.http.port")
	}

	if c.Storage.ReadAttempts < 1 {
		return fmt.Errorf("storage.read_attempts must be at least 1")
	}
	if c.Storage.WriteAttempts < 1 {
		return fmt.Errorf("storage.write_attempts must be at least 1")
	}
	if c.Storage.ReadBackoff < 0 || c.Storage.WriteBackoff < 0 {
		return fmt.Errorf("storage backoff durations must be non-negative")
	}

	if c.Fog.DefaultRadius <= 0 {
		return fmt.Errorf("fog.default_radius must be positive")
	}
	if c.Fog.HideTolerance < 0 {
		return fmt.Errorf("fog.hide_tolerance must be non-negative")
	}
	if c.Fog.CompactionThreshold < 0 {
		return fmt.Errorf("fog.compaction_threshold must be non-negative")
	}
	if c.Fog.DedupTolerance < 0 {
		return fmt.Errorf("fog.dedup_tolerance must be non-negative")
	}
	if c.Fog.MaxAreas < c.Fog.CompactionThreshold {
		return fmt.Errorf("fog.max_areas must be at least fog.compaction_threshold")
	}

	if c.Monitoring.Enabled && c.Monitoring.Interval <= 0 {
		return fmt.Errorf("monitoring.interval must be positive")
	}

	return nil
}

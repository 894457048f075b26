// Package ttsdconfig loads the daemon's configuration: listen address,
// engine search paths, the default engine id, and the cleanup-probe
// cadence. It wraps spf13/viper with automatic env binding plus a YAML
// config file; command-line flags are not merged in (the CLI only passes
// the directories to search for the file).
package ttsdconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the daemon's resolved configuration.
type Config struct {
	// ListenAddr is the wsbus listen address, e.g. ":7443".
	ListenAddr string `mapstructure:"listen_addr"`

	// DefaultEngine is the engine id loaded for the first client when no
	// settings.Store override exists yet.
	DefaultEngine string `mapstructure:"default_engine"`

	// EnginePaths are directories searched for engine plugin manifests;
	// this daemon ships only the in-tree refengine/doubaoengine, so this
	// is advisory.
	EnginePaths []string `mapstructure:"engine_paths"`

	// CleanupDeadline bounds how long a disconnected client may remain
	// registered before Finalize runs (0 means immediately, scheduler.Disconnected).
	CleanupDeadline time.Duration `mapstructure:"cleanup_deadline"`

	// SettingsDir is the BadgerDB directory backing pkg/settings.
	SettingsDir string `mapstructure:"settings_dir"`

	// MetricsAddr is the Prometheus exporter's HTTP listen address, empty
	// to disable metrics entirely.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// Doubao holds Volcengine credentials, only required when
	// DefaultEngine == "doubao".
	Doubao DoubaoConfig `mapstructure:"doubao"`
}

// DoubaoConfig configures the doubaoengine plugin.
type DoubaoConfig struct {
	AppID      string `mapstructure:"app_id"`
	AccessKey  string `mapstructure:"access_key"`
	AppKey     string `mapstructure:"app_key"`
	ResourceID string `mapstructure:"resource_id"`
}

// Defaults returns the built-in configuration used when no file, env var,
// or flag overrides a field.
func Defaults() Config {
	return Config{
		ListenAddr:      ":7443",
		DefaultEngine:   "refengine",
		CleanupDeadline: 5 * time.Second,
		SettingsDir:     "./ttsd-settings",
	}
}

// Load reads configuration from (in increasing priority) built-in defaults,
// a config file named "ttsd" on configPaths, and TTSD_-prefixed environment
// variables, returning the merged result.
func Load(configPaths []string) (Config, error) {
	v := viper.New()
	def := Defaults()
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("default_engine", def.DefaultEngine)
	v.SetDefault("cleanup_deadline", def.CleanupDeadline)
	v.SetDefault("settings_dir", def.SettingsDir)

	v.SetConfigName("ttsd")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("TTSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("ttsdconfig: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("ttsdconfig: unmarshal: %w", err)
	}
	return cfg, nil
}

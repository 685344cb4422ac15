package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete mgx3d configuration
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Objects  ObjectsConfig  `mapstructure:"objects"`
	Stress   StressConfig   `mapstructure:"stress"`
	Scenario ScenarioConfig `mapstructure:"scenario"`
	Output   OutputConfig   `mapstructure:"output"`
}

// LoggingConfig controls the structured log file
type LoggingConfig struct {
	// Enabled turns file logging on. When false, nothing is logged.
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level written: "debug", "info", "warn" or "error"
	Level string `mapstructure:"level"`
	// Dir is the directory holding mgx3d.log. Empty means the state
	// directory next to the config file.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB rotates the log file once it grows past this size (0 = never)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// ObjectsConfig controls how the CLI builds objects
type ObjectsConfig struct {
	// Mutex gives every object its own mutex. Objects shared between
	// goroutines must have one.
	Mutex bool `mapstructure:"mutex"`
	// PublishEvents sends lifecycle events to the event bus (and metrics)
	PublishEvents bool `mapstructure:"publish_events"`
}

// StressConfig holds the defaults of `mgx3d stress`
type StressConfig struct {
	// Workers is the number of concurrent workers
	Workers int `mapstructure:"workers"`
	// Iterations is the number of register/unregister rounds per worker
	Iterations int `mapstructure:"iterations"`
	// Blocking makes worker edges block destruction of the shared object
	Blocking bool `mapstructure:"blocking"`
	// Registry also registers uniquely named objects in a manager
	Registry bool `mapstructure:"registry"`
	// TimeoutSeconds aborts the run after this many seconds (0 = no limit)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ScenarioConfig controls `mgx3d run`
type ScenarioConfig struct {
	// StopOnError stops a scenario at the first failed step
	StopOnError bool `mapstructure:"stop_on_error"`
	// WatchDebounceMs coalesces file events when watching a scenario
	WatchDebounceMs int `mapstructure:"watch_debounce_ms"`
}

// OutputConfig controls terminal output
type OutputConfig struct {
	// Color is "auto" (color on terminals only), "always" or "never"
	Color string `mapstructure:"color"`
	// Format is "text" or "json"
	Format string `mapstructure:"format"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Objects: ObjectsConfig{
			Mutex:         true,
			PublishEvents: true,
		},
		Stress: StressConfig{
			Workers:        8,
			Iterations:     1000,
			Blocking:       false,
			Registry:       true,
			TimeoutSeconds: 60,
		},
		Scenario: ScenarioConfig{
			StopOnError:     false,
			WatchDebounceMs: 200,
		},
		Output: OutputConfig{
			Color:  "auto",
			Format: "text",
		},
	}
}

// Timeout returns the stress timeout as a time.Duration (0 means no limit)
func (s *StressConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// WatchDebounce returns the watch debounce as a time.Duration
func (s *ScenarioConfig) WatchDebounce() time.Duration {
	return time.Duration(s.WatchDebounceMs) * time.Millisecond
}

// ResolveDir returns the log directory, defaulting to StateDir.
func (l *LoggingConfig) ResolveDir() string {
	if l.Dir == "" {
		return StateDir()
	}
	return expandHome(l.Dir)
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Objects defaults
	viper.SetDefault("objects.mutex", defaults.Objects.Mutex)
	viper.SetDefault("objects.publish_events", defaults.Objects.PublishEvents)

	// Stress defaults
	viper.SetDefault("stress.workers", defaults.Stress.Workers)
	viper.SetDefault("stress.iterations", defaults.Stress.Iterations)
	viper.SetDefault("stress.blocking", defaults.Stress.Blocking)
	viper.SetDefault("stress.registry", defaults.Stress.Registry)
	viper.SetDefault("stress.timeout_seconds", defaults.Stress.TimeoutSeconds)

	// Scenario defaults
	viper.SetDefault("scenario.stop_on_error", defaults.Scenario.StopOnError)
	viper.SetDefault("scenario.watch_debounce_ms", defaults.Scenario.WatchDebounceMs)

	// Output defaults
	viper.SetDefault("output.color", defaults.Output.Color)
	viper.SetDefault("output.format", defaults.Output.Format)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mgx3d")
	}
	// Fall back to ~/.config/mgx3d
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mgx3d"
	}
	return filepath.Join(home, ".config", "mgx3d")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the directory for logs and other runtime state
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "mgx3d")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".mgx3d", "state")
	}
	return filepath.Join(home, ".local", "state", "mgx3d")
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && (len(path) < 2 || path[:2] != "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// APIConfig holds settings for the remote task API.
type APIConfig struct {
	// BaseURL is the root URL of the API server (e.g., http://localhost:8000).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request, in seconds.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// ChatConfig holds settings for the chat assistant.
type ChatConfig struct {
	PageSize    int `mapstructure:"page_size" yaml:"page_size"`
	ErrorTTLSec int `mapstructure:"error_ttl_sec" yaml:"error_ttl_sec"`
}

// TasksConfig holds settings for the task list.
type TasksConfig struct {
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme           string `mapstructure:"theme" yaml:"theme"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// LogConfig controls the application log file.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig controls the optional Prometheus listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// StoreConfig locates the local state database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Chat    ChatConfig    `mapstructure:"chat" yaml:"chat"`
	Tasks   TasksConfig   `mapstructure:"tasks" yaml:"tasks"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// configDir returns ~/.config/taskpilot, or "." when the home directory
// is unknown.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "taskpilot")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskpilot/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:8000",
			TimeoutSec: 30,
		},
		Chat: ChatConfig{
			PageSize:    50,
			ErrorTTLSec: 5,
		},
		Tasks: TasksConfig{
			PageSize: 10,
		},
		Display: DisplayConfig{
			Theme:           "default",
			PollIntervalSec: 60,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "taskpilot.log"),
		},
		Store: StoreConfig{
			Path: filepath.Join(dir, "state.db"),
		},
	}
}

// setDefaults mirrors DefaultAppConfig into v so missing keys resolve.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("chat.page_size", d.Chat.PageSize)
	v.SetDefault("chat.error_ttl_sec", d.Chat.ErrorTTLSec)
	v.SetDefault("tasks.page_size", d.Tasks.PageSize)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.poll_interval_sec", d.Display.PollIntervalSec)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("store.path", d.Store.Path)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKPILOT_ (e.g. TASKPILOT_API_BASE_URL)
// override file values. A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskpilot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = 30
	}
	if cfg.Chat.PageSize <= 0 {
		cfg.Chat.PageSize = 50
	}
	if cfg.Chat.ErrorTTLSec <= 0 {
		cfg.Chat.ErrorTTLSec = 5
	}
	if cfg.Tasks.PageSize <= 0 {
		cfg.Tasks.PageSize = 10
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("chat", cfg.Chat)
	v.Set("tasks", cfg.Tasks)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

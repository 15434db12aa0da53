// Package config handles the XDG configuration directory and environment settings.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// AppName is the application directory name.
	AppName = "todo"

	// StateFile is the bbolt file holding tokens, user and filters.
	StateFile = "state.db"

	// EnvFile is the optional dotenv file inside the config directory.
	EnvFile = ".env"

	// DefaultAPIURL is the API base used when TODO_API_URL is unset.
	DefaultAPIURL = "http://localhost:8000/api"

	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 10 * time.Second
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// APIURL is the base URL of the task API, without trailing slash.
	APIURL string

	// Timeout bounds a single API call.
	Timeout time.Duration

	// LogLevel and LogEncoding configure the zap logger.
	LogLevel    string
	LogEncoding string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// NoColor disables styled output.
	NoColor bool
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/todo or $HOME/.config/todo.
// Environment values are read after loading <dir>/.env and ./.env;
// variables already set in the environment win.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}

	_ = godotenv.Load(filepath.Join(dir, EnvFile))
	_ = godotenv.Load(EnvFile)

	return &Config{
		Dir:         dir,
		APIURL:      strings.TrimRight(getString("TODO_API_URL", DefaultAPIURL), "/"),
		Timeout:     getDuration("TODO_API_TIMEOUT", DefaultTimeout),
		LogLevel:    getString("LOG_LEVEL", "warn"),
		LogEncoding: getString("LOG_ENCODING", "console"),
		NoColor:     os.Getenv("NO_COLOR") != "",
	}, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// StatePath returns the path to the persisted client state.
func (c *Config) StatePath() string {
	return filepath.Join(c.Dir, StateFile)
}

// EffectiveLogLevel returns "debug" when Debug is set, else LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

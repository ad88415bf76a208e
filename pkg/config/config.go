package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPath is where the viewer looks for its config file
const DefaultPath = "~/.queueview/config.toml"

var (
	ErrMissingOrigin   = errors.New("viewer origin is empty")
	ErrInvalidInterval = errors.New("reconnect interval must be positive")
)

// TOMLConfig represents the structure of the viewer config file
type TOMLConfig struct {
	Viewer        ViewerSection        `toml:"viewer"`
	Logging       LoggingSection       `toml:"logging"`
	Metrics       MetricsSection       `toml:"metrics"`
	Notifications NotificationsSection `toml:"notifications"`
}

type ViewerSection struct {
	Origin                   string `toml:"origin"`
	ReconnectIntervalSeconds int    `toml:"reconnect_interval_seconds"`
	StatePath                string `toml:"state_path"`
	Headless                 bool   `toml:"headless"`
}

type LoggingSection struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type MetricsSection struct {
	ListenAddr string `toml:"listen_addr"`
}

type NotificationsSection struct {
	Enabled bool `toml:"enabled"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Viewer: ViewerSection{
			Origin:                   "http://localhost:80",
			ReconnectIntervalSeconds: 5,
			StatePath:                "~/.queueview/state.db",
		},
		Logging: LoggingSection{
			Level: "info",
			File:  "~/.queueview/queueview.log",
		},
		Metrics: MetricsSection{
			ListenAddr: "", // disabled
		},
		Notifications: NotificationsSection{
			Enabled: false,
		},
	}
}

// LoadEnvFile loads variables from a .env file in the working directory.
// A missing file is not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from a TOML file, creates default if not found,
// and applies environment variable overrides
func LoadConfig(path string) (TOMLConfig, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		// If we can't write the file we still run on defaults
		_ = writeDefaultConfig(path)
		return applyEnvOverrides(config), nil
	}

	config := DefaultTOMLConfig()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return applyEnvOverrides(config), nil
}

// applyEnvOverrides applies environment variable overrides to the config
// Environment variables follow the pattern: QUEUEVIEW_SECTION_KEY
// Example: QUEUEVIEW_VIEWER_ORIGIN=https://mailgun-mock.internal
func applyEnvOverrides(config TOMLConfig) TOMLConfig {
	if val := os.Getenv("QUEUEVIEW_VIEWER_ORIGIN"); val != "" {
		config.Viewer.Origin = val
	}
	if val := os.Getenv("QUEUEVIEW_VIEWER_RECONNECT_INTERVAL_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			config.Viewer.ReconnectIntervalSeconds = secs
		}
	}
	if val := os.Getenv("QUEUEVIEW_VIEWER_STATE_PATH"); val != "" {
		config.Viewer.StatePath = val
	}
	if val := os.Getenv("QUEUEVIEW_VIEWER_HEADLESS"); val != "" {
		if headless, err := strconv.ParseBool(val); err == nil {
			config.Viewer.Headless = headless
		}
	}

	if val := os.Getenv("QUEUEVIEW_LOGGING_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("QUEUEVIEW_LOGGING_FILE"); val != "" {
		config.Logging.File = val
	}

	if val := os.Getenv("QUEUEVIEW_METRICS_LISTEN_ADDR"); val != "" {
		config.Metrics.ListenAddr = val
	}

	if val := os.Getenv("QUEUEVIEW_NOTIFICATIONS_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			config.Notifications.Enabled = enabled
		}
	}

	return config
}

// Validate checks the settings the viewer cannot run without
func (c *TOMLConfig) Validate() error {
	if strings.TrimSpace(c.Viewer.Origin) == "" {
		return ErrMissingOrigin
	}
	if c.Viewer.ReconnectIntervalSeconds <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, c.Viewer.ReconnectIntervalSeconds)
	}
	return nil
}

// ReconnectInterval returns the retry period as a duration
func (c *TOMLConfig) ReconnectInterval() time.Duration {
	return time.Duration(c.Viewer.ReconnectIntervalSeconds) * time.Second
}

// GetStatePath returns the state database path with ~ expanded
func (c *TOMLConfig) GetStatePath() (string, error) {
	return ExpandPath(c.Viewer.StatePath)
}

// GetLogPath returns the log file path with ~ expanded
func (c *TOMLConfig) GetLogPath() (string, error) {
	return ExpandPath(c.Logging.File)
}

// ExpandPath expands a leading ~/ to the user's home directory
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	return path, nil
}

// writeDefaultConfig writes the default config to a file with all options documented
func writeDefaultConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	content := `# queueview configuration
# This file was auto-generated with default values
#
# Environment variables can override these settings:
# QUEUEVIEW_SECTION_KEY (e.g., QUEUEVIEW_VIEWER_ORIGIN=http://localhost:8080)

[viewer]
# Origin of the mail queue server. The websocket endpoint is derived from it
# (http -> ws, https -> wss, path /ws)
origin = "http://localhost:80"

# Seconds between reconnect checks while disconnected
reconnect_interval_seconds = 5

# Viewer state (connection history, settings). Messages are never stored.
state_path = "~/.queueview/state.db"

# Log queue changes instead of starting the terminal UI
# headless = false

[logging]
# trace, debug, info, warn, error
level = "info"

# Log file used while the terminal UI owns the screen
file = "~/.queueview/queueview.log"

[metrics]
# Address for the Prometheus /metrics endpoint (empty = disabled)
# listen_addr = "127.0.0.1:9091"

[notifications]
# Desktop notification when a new message is queued
enabled = false
`

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

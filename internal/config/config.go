package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `toml:"server"`
	Database     DatabaseConfig     `toml:"database"`
	Library      LibraryConfig      `toml:"library"`
	Playback     PlaybackConfig     `toml:"playback"`
	Notification NotificationConfig `toml:"notification"`
	Session      SessionConfig      `toml:"session"`
	Logging      LoggingConfig      `toml:"logging"`
}

// ServerConfig contains the HTTP control surface configuration
type ServerConfig struct {
	Enabled     bool   `toml:"enabled"`
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// DatabaseConfig contains the library index location
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LibraryConfig contains music library configuration. An empty path selects
// the builtin demo catalog.
type LibraryConfig struct {
	Path             string   `toml:"path"`
	SupportedFormats []string `toml:"supported_formats"`
	ScanOnStartup    bool     `toml:"scan_on_startup"`
	WatchForChanges  bool     `toml:"watch_for_changes"`
}

// PlaybackConfig contains playback engine configuration
type PlaybackConfig struct {
	PositionIntervalMS int  `toml:"position_interval_ms"`
	Silent             bool `toml:"silent"`
}

// NotificationConfig contains desktop notification configuration
type NotificationConfig struct {
	Enabled     bool   `toml:"enabled"`
	AppName     string `toml:"app_name"`
	ChannelID   string `toml:"channel_id"`
	ChannelName string `toml:"channel_name"`
	Importance  string `toml:"importance"`
}

// SessionConfig contains session mirror and host lifecycle configuration
type SessionConfig struct {
	MPRISEnabled bool   `toml:"mpris_enabled"`
	BusName      string `toml:"bus_name"`
	InhibitSleep bool   `toml:"inhibit_sleep"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:     true,
			Port:        "8412",
			Host:        "127.0.0.1",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Database: DatabaseConfig{
			Path: "./mediasession.db",
		},
		Library: LibraryConfig{
			Path:             "",
			SupportedFormats: []string{".mp3", ".flac", ".wav"},
			ScanOnStartup:    true,
			WatchForChanges:  false,
		},
		Playback: PlaybackConfig{
			PositionIntervalMS: 1000,
			Silent:             false,
		},
		Notification: NotificationConfig{
			Enabled:     true,
			AppName:     "MediaSession",
			ChannelID:   "mediasession.playback",
			ChannelName: "MediaSession",
			Importance:  "low",
		},
		Session: SessionConfig{
			MPRISEnabled: true,
			BusName:      "org.mpris.MediaPlayer2.mediasession",
			InhibitSleep: true,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: false,
		},
	}
}

// LoadConfig loads configuration from a TOML file, then applies environment
// overrides (optionally read from a .env file next to the working directory)
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides selected keys from MEDIASESSION_* variables
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("MEDIASESSION_LIBRARY_PATH"); v != "" {
		c.Library.Path = v
	}
	if v := getenv("MEDIASESSION_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("MEDIASESSION_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := getenv("MEDIASESSION_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("MEDIASESSION_SILENT"); v != "" {
		if silent, err := strconv.ParseBool(v); err == nil {
			c.Playback.Silent = silent
		}
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# MediaSession Daemon Configuration
# Leave library.path empty to play the builtin demo catalog.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Enabled {
		if c.Server.Port == "" {
			return fmt.Errorf("server port cannot be empty")
		}
		if c.Server.Host == "" {
			return fmt.Errorf("server host cannot be empty")
		}
		if c.Server.ReadTimeout < 0 {
			return fmt.Errorf("server read timeout must be positive")
		}
	}

	if c.Library.Path != "" {
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty when a library path is set")
		}
		if len(c.Library.SupportedFormats) == 0 {
			return fmt.Errorf("at least one supported audio format must be specified")
		}
	}

	if c.Playback.PositionIntervalMS <= 0 {
		return fmt.Errorf("playback position interval must be positive")
	}

	if c.Notification.Enabled && c.Notification.ChannelID == "" {
		return fmt.Errorf("notification channel id cannot be empty")
	}
	validImportance := map[string]bool{
		"min": true, "low": true, "default": true, "high": true,
	}
	if c.Notification.Enabled && !validImportance[c.Notification.Importance] {
		return fmt.Errorf("invalid notification importance: %s (must be min, low, default, or high)", c.Notification.Importance)
	}

	if c.Session.MPRISEnabled && c.Session.BusName == "" {
		return fmt.Errorf("session bus name cannot be empty when MPRIS is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Library.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}

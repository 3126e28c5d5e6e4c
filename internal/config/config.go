// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/theme"
)

// Default configuration values.
const (
	DefaultAPIVersion         = "54.0"
	DefaultChannel            = "/event/Registration_Alert__e"
	DefaultTokenEnv           = "REGALERT_SESSION_TOKEN"
	DefaultClientSecretEnv    = "REGALERT_CLIENT_SECRET"
	DefaultHeader             = "Registration Alerts"
	DefaultAppName            = "regalert"
	DefaultPrefixLength       = 15
	DefaultDismissibleTimeout = 3 * time.Second
)

// Session sources.
const (
	SessionSourceEnv               = "env"
	SessionSourceStatic            = "static"
	SessionSourceClientCredentials = "client_credentials"
)

// Config represents the regalert configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Session SessionConfig `toml:"session"`
	User    UserConfig    `toml:"user"`
	Retry   RetryConfig   `toml:"retry"`
	Toast   ToastConfig   `toml:"toast"`
	Audio   AudioConfig   `toml:"audio"`
	Popover PopoverConfig `toml:"popover"`
	Journal JournalConfig `toml:"journal"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig locates the streaming endpoint.
type ServerConfig struct {
	InstanceURL string   `toml:"instance_url"` // e.g. https://example.my.site.com
	APIVersion  string   `toml:"api_version"`  // CometD path version, e.g. "54.0"
	Channel     string   `toml:"channel"`      // Event channel to subscribe to
	PollTimeout Duration `toml:"poll_timeout"` // Upper bound for a single long-poll request
}

// SessionConfig selects where the session credential comes from.
type SessionConfig struct {
	Source          string   `toml:"source"`            // env, static, client_credentials
	Token           string   `toml:"token"`             // static only
	TokenEnv        string   `toml:"token_env"`         // env only
	TokenURL        string   `toml:"token_url"`         // client_credentials only
	ClientID        string   `toml:"client_id"`         // client_credentials only
	ClientSecretEnv string   `toml:"client_secret_env"` // client_credentials only
	Scopes          []string `toml:"scopes,omitempty"`  // client_credentials only
}

// UserConfig identifies the viewing user.
type UserConfig struct {
	ID           string `toml:"id"`
	PrefixLength int    `toml:"prefix_length"` // Leading characters compared when filtering
}

// RetryConfig controls handshake retries. MaxAttempts 0 disables retrying.
type RetryConfig struct {
	MaxAttempts     int      `toml:"max_attempts"`
	InitialInterval Duration `toml:"initial_interval"`
	MaxInterval     Duration `toml:"max_interval"`
}

// ToastConfig controls toast surfaces.
type ToastConfig struct {
	Desktop            bool     `toml:"desktop"`             // Send toasts to the desktop notification service
	AppName            string   `toml:"app_name"`            // App name shown by the desktop
	DismissibleTimeout Duration `toml:"dismissible_timeout"` // Expiry for dismissible toasts
}

// AudioConfig contains audio settings.
type AudioConfig struct {
	Enabled bool        `toml:"enabled"`
	Volume  int         `toml:"volume"` // 0-100
	Sounds  SoundConfig `toml:"sounds"`
}

// SoundConfig contains per-variant sound file paths.
type SoundConfig struct {
	Success string `toml:"success"`
	Error   string `toml:"error"`
	Warning string `toml:"warning"`
	Info    string `toml:"info"`
}

// PopoverConfig holds terminal popover settings.
type PopoverConfig struct {
	Header           string        `toml:"header"`
	ClipboardCommand string        `toml:"clipboard_command"` // Empty = auto-detect
	Palette          theme.Palette `toml:"palette"`
}

// JournalConfig controls the alert journal.
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Empty = default data dir
}

// LogConfig controls logging.
type LogConfig struct {
	Level      string `toml:"level"`        // debug, info, warn, error
	File       string `toml:"file"`         // Empty = stderr only
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate after this size
	MaxBackups int    `toml:"max_backups"`  // Rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			APIVersion:  DefaultAPIVersion,
			Channel:     DefaultChannel,
			PollTimeout: Duration(2 * time.Minute),
		},
		Session: SessionConfig{
			Source:          SessionSourceEnv,
			TokenEnv:        DefaultTokenEnv,
			ClientSecretEnv: DefaultClientSecretEnv,
		},
		User: UserConfig{
			PrefixLength: DefaultPrefixLength,
		},
		Retry: RetryConfig{
			MaxAttempts:     0,
			InitialInterval: Duration(time.Second),
			MaxInterval:     Duration(30 * time.Second),
		},
		Toast: ToastConfig{
			Desktop:            true,
			AppName:            DefaultAppName,
			DismissibleTimeout: Duration(DefaultDismissibleTimeout),
		},
		Audio: AudioConfig{
			Enabled: false,
			Volume:  80,
		},
		Popover: PopoverConfig{
			Header:  DefaultHeader,
			Palette: theme.DefaultPalette(),
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "regalert", "config.toml")
}

// LoadConfig loads configuration from path, or the default path if empty.
// Returns the default config if the file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
// Connection settings that only "run" needs are checked by RequireServer.
func (c *Config) Validate() error {
	if c.Server.InstanceURL != "" {
		u, err := url.Parse(c.Server.InstanceURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("instance_url must be an http(s) URL, got %q", c.Server.InstanceURL)
		}
	}
	if !strings.HasPrefix(c.Server.Channel, "/") {
		return fmt.Errorf("channel must start with '/', got %q", c.Server.Channel)
	}
	if c.Server.APIVersion == "" {
		return errors.New("api_version cannot be empty")
	}

	switch c.Session.Source {
	case SessionSourceEnv, SessionSourceStatic, SessionSourceClientCredentials:
	default:
		return fmt.Errorf("invalid session source %q, must be one of: %s, %s, %s",
			c.Session.Source, SessionSourceEnv, SessionSourceStatic, SessionSourceClientCredentials)
	}

	if c.User.PrefixLength < 1 || c.User.PrefixLength > 18 {
		return fmt.Errorf("prefix_length must be between 1 and 18, got %d", c.User.PrefixLength)
	}

	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts cannot be negative, got %d", c.Retry.MaxAttempts)
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// RequireServer checks the settings needed to connect to the channel.
func (c *Config) RequireServer() error {
	if c.Server.InstanceURL == "" {
		return errors.New("server.instance_url is not set")
	}
	if c.User.ID == "" {
		return errors.New("user.id is not set")
	}
	return nil
}

// Endpoint returns the CometD endpoint URL.
func (c *Config) Endpoint() string {
	return strings.TrimRight(c.Server.InstanceURL, "/") + "/cometd/" + c.Server.APIVersion + "/"
}

// JournalPath returns the configured journal path, or "" for the default.
func (c *Config) JournalPath() string {
	return expandPath(c.Journal.Path)
}

// SoundForVariant returns the sound file for a variant, with ~ expanded.
// Empty and unknown variants use the info sound.
func (c *Config) SoundForVariant(v model.Variant) string {
	var path string
	switch v.OrDefault() {
	case model.VariantSuccess:
		path = c.Audio.Sounds.Success
	case model.VariantError:
		path = c.Audio.Sounds.Error
	case model.VariantWarning:
		path = c.Audio.Sounds.Warning
	default:
		path = c.Audio.Sounds.Info
	}
	return expandPath(path)
}

// ParseLevel converts a log level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

package homied

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for homied.
type Config struct {
	Server         ServerConfig         `toml:"server"`
	HomeAssistant  HomeAssistantConfig  `toml:"home_assistant"`
	MusicAssistant MusicAssistantConfig `toml:"music_assistant"`
	Jellyfin       JellyfinConfig       `toml:"jellyfin"`
	Modules        ModulesConfig        `toml:"modules"`
}

// ServerConfig defines shared daemon settings.
type ServerConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// HomeAssistantConfig points at the player abstraction.
type HomeAssistantConfig struct {
	BaseURL   string `toml:"base_url"`
	Token     string `toml:"token"`
	EntityID  string `toml:"entity_id"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

// MusicAssistantConfig points at the low-level queue service.
type MusicAssistantConfig struct {
	BaseURL          string `toml:"base_url"`
	Token            string `toml:"token"`
	RequestTimeoutMS int64  `toml:"request_timeout_ms"`
	SessionTimeoutMS int64  `toml:"session_timeout_ms"`
	PageLimit        int    `toml:"page_limit"`
}

// JellyfinConfig configures optional track search for enqueue requests.
type JellyfinConfig struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	Dashboard    DashboardConfig    `toml:"dashboard"`
	Events       EventsConfig       `toml:"events"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// DashboardConfig configures the HTTP API module.
type DashboardConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// EventsConfig configures the MQTT event publisher.
type EventsConfig struct {
	Enabled    bool   `toml:"enabled"`
	Broker     string `toml:"broker"`
	TopicBase  string `toml:"topic_base"`
	IntervalMS int64  `toml:"interval_ms"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields every enabled surface depends on. Missing
// backend endpoints are hard configuration errors surfaced before any
// operation runs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HomeAssistant.BaseURL) == "" {
		return errors.New("home_assistant.base_url is required")
	}
	if strings.TrimSpace(c.HomeAssistant.Token) == "" {
		return errors.New("home_assistant.token is required")
	}
	if strings.TrimSpace(c.HomeAssistant.EntityID) == "" {
		return errors.New("home_assistant.entity_id is required")
	}
	if strings.TrimSpace(c.MusicAssistant.BaseURL) == "" {
		return errors.New("music_assistant.base_url is required")
	}
	if c.Jellyfin.Enabled {
		if strings.TrimSpace(c.Jellyfin.BaseURL) == "" || strings.TrimSpace(c.Jellyfin.APIKey) == "" {
			return errors.New("jellyfin.base_url and jellyfin.api_key are required when jellyfin is enabled")
		}
	}
	if c.Modules.Events.Enabled {
		if strings.TrimSpace(c.Modules.Events.Broker) == "" && !c.Modules.EmbeddedMQTT.Enabled {
			return errors.New("modules.events.broker is required unless the embedded broker is enabled")
		}
	}
	if c.Modules.EmbeddedMQTT.Enabled && !c.Modules.EmbeddedMQTT.AllowAnonymous && c.Modules.EmbeddedMQTT.Username == "" {
		return fmt.Errorf("modules.embedded_mqtt requires allow_anonymous or username")
	}
	return nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "homie", "homied.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "homie", "homied.toml"), nil
}
